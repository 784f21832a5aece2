// Package storetest checks that a store.IStore implementation behaves like the others.
package storetest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/store"
)

// Run exercises every store operation against fresh, initialized stores from newStore
func Run(t *testing.T, newStore func(t *testing.T) store.IStore) {
	t.Run("Users", func(t *testing.T) {
		db := newStore(t)

		_, err := db.GetUserByName("admin")
		require.ErrorIs(t, err, store.ErrNotFound)

		user := model.User{Username: "admin", PasswordHash: "hash"}
		require.NoError(t, db.CreateUser(&user))
		assert.NotZero(t, user.ID)

		got, err := db.GetUserByName("admin")
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("ProductsKeepInsertionOrder", func(t *testing.T) {
		db := newStore(t)

		products, err := db.GetProducts()
		require.NoError(t, err)
		assert.Empty(t, products)

		image := "bolt.png"
		for _, p := range []model.Product{
			{Name: "Bolt", Quantity: 3, Image: &image},
			{Name: "Nut", Quantity: 7},
			{Name: "Washer"},
		} {
			p := p
			require.NoError(t, db.CreateProduct(&p))
			assert.NotZero(t, p.ID)
		}

		products, err = db.GetProducts()
		require.NoError(t, err)
		require.Len(t, products, 3)
		assert.Equal(t, "Bolt", products[0].Name)
		assert.Equal(t, "Nut", products[1].Name)
		assert.Equal(t, "Washer", products[2].Name)
		assert.Less(t, products[0].ID, products[1].ID)
		assert.Less(t, products[1].ID, products[2].ID)
		assert.Equal(t, "bolt.png", products[0].ImageName())
		assert.Nil(t, products[1].Image)
		assert.Equal(t, 0, products[2].Quantity)
	})

	t.Run("UpdateQuantity", func(t *testing.T) {
		db := newStore(t)

		p := model.Product{Name: "Bolt", Quantity: 3}
		require.NoError(t, db.CreateProduct(&p))

		updated, err := db.UpdateProductQuantity(p.ID, 12)
		require.NoError(t, err)
		assert.Equal(t, 12, updated.Quantity)
		assert.Equal(t, "Bolt", updated.Name)

		got, err := db.GetProductByID(p.ID)
		require.NoError(t, err)
		assert.Equal(t, 12, got.Quantity)

		_, err = db.UpdateProductQuantity(p.ID+100, 1)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		db := newStore(t)

		a := model.Product{Name: "A", Quantity: 1}
		b := model.Product{Name: "B", Quantity: 2}
		require.NoError(t, db.CreateProduct(&a))
		require.NoError(t, db.CreateProduct(&b))

		require.NoError(t, db.DeleteProduct(a.ID))
		require.ErrorIs(t, db.DeleteProduct(a.ID), store.ErrNotFound)

		_, err := db.GetProductByID(a.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		products, err := db.GetProducts()
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, b.ID, products[0].ID)

		// ids are not reused
		c := model.Product{Name: "C"}
		require.NoError(t, db.CreateProduct(&c))
		assert.Greater(t, c.ID, b.ID)
	})

	t.Run("ListWhileUpdating", func(t *testing.T) {
		db := newStore(t)

		ids := make([]int, 0, 3)
		for _, name := range []string{"Bolt", "Nut", "Washer"} {
			p := model.Product{Name: name, Quantity: 1}
			require.NoError(t, db.CreateProduct(&p))
			ids = append(ids, p.ID)
		}

		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}
				if _, err := db.UpdateProductQuantity(ids[i%len(ids)], i); err != nil {
					t.Errorf("update: %v", err)
					return
				}
			}
		}()

		for i := 0; i < 300; i++ {
			products, err := db.GetProducts()
			if !assert.NoError(t, err) || !assert.Len(t, products, len(ids)) {
				break
			}
			for j, p := range products {
				assert.Equal(t, ids[j], p.ID)
			}
			_, err = db.GetProductByID(ids[i%len(ids)])
			assert.NoError(t, err)
		}
		close(done)
		wg.Wait()
	})
}
