package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/store/gormdb"
)

func newTestDB(t *testing.T) store.IStore {
	t.Helper()

	db, err := gormdb.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init())
	return db
}

func TestParseQuantity(t *testing.T) {
	valid := map[string]int{"0": 0, "12": 12, "007": 7}
	for in, want := range valid {
		got, ok := ParseQuantity(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	for _, in := range []string{"", "abc", "-1", "+1", "1.5", " 1", "1e3", "٣", "99999999999999999999999"} {
		_, ok := ParseQuantity(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	p, err := Create(db, "Bolt", 3, "")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Nil(t, p.Image)

	q, err := Create(db, "Nut", 0, "nut.png")
	require.NoError(t, err)
	assert.Equal(t, "nut.png", q.ImageName())

	products, err := List(db)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Bolt", products[0].Name)
	assert.Equal(t, "Nut", products[1].Name)
}

func TestUpdateQuantity(t *testing.T) {
	db := newTestDB(t)

	p, err := Create(db, "Bolt", 3, "")
	require.NoError(t, err)

	got, updated, err := UpdateQuantity(db, p.ID, "12")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, 12, got.Quantity)
}

func TestUpdateQuantity_NonNumericIsNoop(t *testing.T) {
	db := newTestDB(t)

	p, err := Create(db, "Bolt", 3, "")
	require.NoError(t, err)

	for _, raw := range []string{"abc", "", "-4", "2.5"} {
		got, updated, err := UpdateQuantity(db, p.ID, raw)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.Equal(t, 3, got.Quantity)
	}

	stored, err := db.GetProductByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quantity)
}

func TestUpdateQuantity_UnknownProduct(t *testing.T) {
	db := newTestDB(t)

	_, _, err := UpdateQuantity(db, 42, "5")
	require.ErrorIs(t, err, store.ErrNotFound)

	// unknown id wins over bad input
	_, _, err = UpdateQuantity(db, 42, "abc")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)

	p, err := Create(db, "Bolt", 3, "")
	require.NoError(t, err)

	require.NoError(t, Delete(db, p.ID))
	require.ErrorIs(t, Delete(db, p.ID), store.ErrNotFound)

	products, err := List(db)
	require.NoError(t, err)
	assert.Empty(t, products)
}
