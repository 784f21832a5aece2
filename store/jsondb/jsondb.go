package jsondb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/sdomino/scribble"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/store"
)

const (
	productCollection = "products"
	userCollection    = "users"
	metaCollection    = "meta"
	sequenceResource  = "sequences"
)

type sequences struct {
	Product int  `json:"product"`
	User    uint `json:"user"`
}

type JsonDB struct {
	conn   *scribble.Driver
	dbPath string
	mu     sync.RWMutex
}

// New returns a new pointer JsonDB
func New(dbPath string) (*JsonDB, error) {
	conn, err := scribble.New(dbPath, nil)
	if err != nil {
		return nil, err
	}
	ans := JsonDB{
		conn:   conn,
		dbPath: dbPath,
	}
	return &ans, nil
}

func (o *JsonDB) Init() error {
	var productPath string = path.Join(o.dbPath, productCollection)
	var userPath string = path.Join(o.dbPath, userCollection)
	var metaPath string = path.Join(o.dbPath, metaCollection)

	// create directories if they do not exist
	for _, p := range []string{productPath, userPath, metaPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := os.MkdirAll(p, os.ModePerm); err != nil {
				return err
			}
		}
	}

	// id sequences
	if _, err := os.Stat(path.Join(metaPath, sequenceResource+".json")); os.IsNotExist(err) {
		return o.conn.Write(metaCollection, sequenceResource, sequences{})
	}
	return nil
}

// GetPath returns the database directory
func (o *JsonDB) GetPath() string {
	return o.dbPath
}

// GetUserByName func to get single user from the database
func (o *JsonDB) GetUserByName(username string) (model.User, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.getUser(username)
}

func (o *JsonDB) getUser(username string) (model.User, error) {
	user := model.User{}
	if !validUsername(username) {
		return user, store.ErrNotFound
	}
	if err := o.conn.Read(userCollection, username, &user); err != nil {
		return user, translate(err)
	}
	return user, nil
}

// CreateUser func to save a new user in the database
func (o *JsonDB) CreateUser(user *model.User) error {
	if !validUsername(user.Username) {
		return fmt.Errorf("invalid username %q", user.Username)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.getUser(user.Username); err == nil {
		return fmt.Errorf("user %s already exists", user.Username)
	}

	seq, err := o.readSequences()
	if err != nil {
		return err
	}
	seq.User++
	user.ID = seq.User
	if err := o.conn.Write(metaCollection, sequenceResource, seq); err != nil {
		return err
	}
	return o.conn.Write(userCollection, user.Username, user)
}

// GetProducts func to read all products ordered by id
func (o *JsonDB) GetProducts() ([]model.Product, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	products := []model.Product{}

	records, err := o.conn.ReadAll(productCollection)
	if err != nil {
		return products, err
	}

	for _, f := range records {
		product := model.Product{}
		if err := json.Unmarshal([]byte(f), &product); err != nil {
			return products, fmt.Errorf("cannot decode product json structure: %v", err)
		}
		products = append(products, product)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// GetProductByID func to read a single product
func (o *JsonDB) GetProductByID(productID int) (model.Product, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.getProduct(productID)
}

func (o *JsonDB) getProduct(productID int) (model.Product, error) {
	product := model.Product{}
	if err := o.conn.Read(productCollection, resourceName(productID), &product); err != nil {
		return product, translate(err)
	}
	return product, nil
}

// CreateProduct func assigns the next id and writes the product
func (o *JsonDB) CreateProduct(product *model.Product) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	seq, err := o.readSequences()
	if err != nil {
		return err
	}
	seq.Product++
	product.ID = seq.Product
	if err := o.conn.Write(metaCollection, sequenceResource, seq); err != nil {
		return err
	}
	return o.conn.Write(productCollection, resourceName(product.ID), product)
}

// UpdateProductQuantity func sets the quantity of an existing product
func (o *JsonDB) UpdateProductQuantity(productID int, quantity int) (model.Product, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	product, err := o.getProduct(productID)
	if err != nil {
		return model.Product{}, err
	}
	product.Quantity = quantity
	if err := o.conn.Write(productCollection, resourceName(productID), product); err != nil {
		return model.Product{}, err
	}
	return product, nil
}

// DeleteProduct func removes a product file
func (o *JsonDB) DeleteProduct(productID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.getProduct(productID); err != nil {
		return err
	}
	return o.conn.Delete(productCollection, resourceName(productID))
}

func (o *JsonDB) readSequences() (sequences, error) {
	seq := sequences{}
	if err := o.conn.Read(metaCollection, sequenceResource, &seq); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return seq, err
	}
	return seq, nil
}

// usernames double as file names
func validUsername(username string) bool {
	return username != "" && !strings.ContainsAny(username, `/\`) && !strings.Contains(username, "..")
}

// zero padded so that the directory listing keeps numeric order
func resourceName(productID int) string {
	return fmt.Sprintf("%010d", productID)
}

func translate(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return store.ErrNotFound
	}
	return err
}
