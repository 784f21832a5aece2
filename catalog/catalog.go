// Package catalog implements the product operations on top of a store.
package catalog

import (
	"strconv"

	"github.com/labstack/gommon/log"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/store"
)

// ParseQuantity accepts a non-empty string of ASCII digits only
func ParseQuantity(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// List returns the whole catalog in store order
func List(db store.IStore) ([]model.Product, error) {
	return db.GetProducts()
}

// Create inserts a new product. An empty image means no image.
func Create(db store.IStore, name string, quantity int, image string) (model.Product, error) {
	product := model.Product{Name: name, Quantity: quantity}
	if image != "" {
		product.Image = &image
	}
	if err := db.CreateProduct(&product); err != nil {
		return model.Product{}, err
	}
	return product, nil
}

// UpdateQuantity sets the quantity from raw form input.
// Input that is not a non-negative integer leaves the product unchanged
// and reports updated=false. An unknown id is store.ErrNotFound.
func UpdateQuantity(db store.IStore, productID int, raw string) (product model.Product, updated bool, err error) {
	product, err = db.GetProductByID(productID)
	if err != nil {
		return model.Product{}, false, err
	}

	quantity, ok := ParseQuantity(raw)
	if !ok {
		log.Warnf("Ignored non-numeric quantity %q for product %d", raw, productID)
		return product, false, nil
	}

	product, err = db.UpdateProductQuantity(productID, quantity)
	if err != nil {
		return model.Product{}, false, err
	}
	return product, true, nil
}

// Delete removes a product, store.ErrNotFound when absent
func Delete(db store.IStore, productID int) error {
	return db.DeleteProduct(productID)
}
