package gqlquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"model-graphql/internal/store"
)

func TestTypeName(t *testing.T) {
	assert.Equal(t, "SaleOrder", TypeName("sale.order"))
	assert.Equal(t, "Partner", TypeName("partner"))
}

func TestBuildTypeMap(t *testing.T) {
	schema := store.NewSchema(store.NewModel("sale.order"), store.NewModel("res.partner"), store.NewModel("Res.Partner"))
	m := BuildTypeMap(schema)

	assert.Equal(t, "sale.order", m["SaleOrder"])
	assert.Equal(t, "Res.Partner", m["ResPartner"])
	assert.Equal(t, "res.partner", m["ResPartner2"])
	assert.Len(t, m, 3)
}

func TestTypeMapCache_KeyedByFingerprint(t *testing.T) {
	ctx := context.Background()
	cache := NewTypeMapCache(2)

	v1 := store.NewSchema(store.NewModel("res.partner"))
	m1 := cache.Get(ctx, v1)
	assert.Equal(t, "res.partner", m1["ResPartner"])

	// Same entity set, same mapping.
	again := cache.Get(ctx, store.NewSchema(store.NewModel("res.partner")))
	assert.Equal(t, m1, again)
	assert.Equal(t, 1, cache.Len())

	// A new module installs a model: the mapping must see it.
	v2 := store.NewSchema(store.NewModel("res.partner"), store.NewModel("sale.order"))
	m2 := cache.Get(ctx, v2)
	assert.Equal(t, "sale.order", m2["SaleOrder"])
	assert.Equal(t, 2, cache.Len())

	v3 := store.NewSchema(store.NewModel("stock.move"))
	cache.Get(ctx, v3)
	assert.Equal(t, 2, cache.Len())
	_, stillCached := cache.entries[v1.Fingerprint]
	assert.False(t, stillCached, "oldest entry should be evicted")
}

func TestTypeMapCache_NoFingerprintNotCached(t *testing.T) {
	cache := NewTypeMapCache(0)
	schema := &store.Schema{Models: map[string]*store.Model{"a.b": store.NewModel("a.b")}}

	m := cache.Get(context.Background(), schema)
	assert.Equal(t, "a.b", m["AB"])
	assert.Equal(t, 0, cache.Len())
}
