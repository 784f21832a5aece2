package model

// Product model
type Product struct {
	ID       int     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string  `gorm:"not null"                 json:"name"`
	Quantity int     `gorm:"default:0"                json:"quantity"`
	Image    *string `gorm:"default:null"             json:"image"`
}

// ImageName returns the stored image filename or an empty string
func (p Product) ImageName() string {
	if p.Image == nil {
		return ""
	}
	return *p.Image
}

// ProductForm is the payload of the add product form
type ProductForm struct {
	Name     string `form:"name" validate:"required"`
	Quantity int    `form:"quantity" validate:"min=0"`
}
