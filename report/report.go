// Package report derives catalog statistics and spreadsheet snapshots.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/stockui/stock-ui/model"
)

const (
	SheetName           = "Products"
	SpreadsheetFilename = "products.xlsx"
	SpreadsheetMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the first row of the exported sheet
var Header = []interface{}{"Name", "Quantity"}

// Summarize returns the total quantity and the number of products
func Summarize(products []model.Product) model.Summary {
	summary := model.Summary{ItemCount: len(products)}
	for _, p := range products {
		summary.TotalQuantity += p.Quantity
	}
	return summary
}

// ExportSpreadsheet writes the products, in the given order, into an xlsx workbook
func ExportSpreadsheet(products []model.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return nil, fmt.Errorf("cannot write header row: %w", err)
	}

	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{p.Name, p.Quantity}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("cannot write row of product %d: %w", p.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
