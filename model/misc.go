package model

// Summary holds the catalog analytics shown on the analytics page
type Summary struct {
	TotalQuantity int `json:"total_quantity"`
	ItemCount     int `json:"item_count"`
}

// BaseData struct to pass value to the base template
type BaseData struct {
	Active      string
	CurrentUser string
	CSRFToken   string
}
