package store

import (
	"errors"

	"github.com/stockui/stock-ui/model"
)

// ErrNotFound is returned when a user or product does not exist
var ErrNotFound = errors.New("record not found")

type IStore interface {
	Init() error
	GetUserByName(username string) (model.User, error)
	CreateUser(user *model.User) error
	GetProducts() ([]model.Product, error)
	GetProductByID(productID int) (model.Product, error)
	CreateProduct(product *model.Product) error
	UpdateProductQuantity(productID int, quantity int) (model.Product, error)
	DeleteProduct(productID int) error
}
