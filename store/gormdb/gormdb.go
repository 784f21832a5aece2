// Package gormdb provides a relational storage backend (SQLite or PostgreSQL) for Stock UI
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/store"
)

// GormDB - Representation of a gorm database backend
type GormDB struct {
	conn *gorm.DB
}

// NewSQLite opens (and creates when missing) a SQLite database file
func NewSQLite(dbPath string) (*GormDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	o, err := New(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}

	// a single writer avoids SQLITE_BUSY on concurrent requests
	sqlDB, err := o.conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return o, nil
}

// NewPostgres connects to a PostgreSQL database
func NewPostgres(dsn string) (*GormDB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	o, err := New(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := o.conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Minute * 3)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	return o, nil
}

// New returns pointer to a gorm database using the given dialector
func New(dialector gorm.Dialector) (*GormDB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("cannot ping database: %w", err)
	}

	return &GormDB{conn: conn}, nil
}

// Init creates the tables if they do not exist
func (o *GormDB) Init() error {
	return o.conn.AutoMigrate(&model.User{}, &model.Product{})
}

// Close releases the underlying connection pool
func (o *GormDB) Close() error {
	sqlDB, err := o.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetUserByName func to get single user from the database
func (o *GormDB) GetUserByName(username string) (model.User, error) {
	user := model.User{}
	if err := o.conn.Where("username = ?", username).First(&user).Error; err != nil {
		return user, translate(err)
	}
	return user, nil
}

// CreateUser func to save a new user in the database
func (o *GormDB) CreateUser(user *model.User) error {
	return o.conn.Create(user).Error
}

// GetProducts func to query all products in insertion order
func (o *GormDB) GetProducts() ([]model.Product, error) {
	products := []model.Product{}
	if err := o.conn.Order("id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetProductByID func to query a product by its id
func (o *GormDB) GetProductByID(productID int) (model.Product, error) {
	product := model.Product{}
	if err := o.conn.First(&product, productID).Error; err != nil {
		return product, translate(err)
	}
	return product, nil
}

// CreateProduct func inserts a product and fills in its id
func (o *GormDB) CreateProduct(product *model.Product) error {
	return o.conn.Create(product).Error
}

// UpdateProductQuantity func sets the quantity of an existing product
func (o *GormDB) UpdateProductQuantity(productID int, quantity int) (model.Product, error) {
	product := model.Product{}
	err := o.conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, productID).Error; err != nil {
			return err
		}
		product.Quantity = quantity
		return tx.Model(&product).Update("quantity", quantity).Error
	})
	if err != nil {
		return model.Product{}, translate(err)
	}
	return product, nil
}

// DeleteProduct func deletes a product from the database
func (o *GormDB) DeleteProduct(productID int) error {
	res := o.conn.Delete(&model.Product{}, productID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}
