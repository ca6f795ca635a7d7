// Package memstore keeps catalog stock and orders in process memory.
// It is used by tests and by STORE_DRIVER=memory for local runs.
package memstore

import (
	"context"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"sync"
)

// Catalog implements orders.StockLedger and orders.CatalogReader.
type Catalog struct {
	mu    sync.Mutex
	items map[string]orders.CatalogItem
}

func NewCatalog(items ...orders.CatalogItem) *Catalog {
	c := &Catalog{items: make(map[string]orders.CatalogItem, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Put inserts or replaces an item.
func (c *Catalog) Put(it orders.CatalogItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.ID] = it
}

func (c *Catalog) Reserve(_ context.Context, itemID string, qty int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[itemID]
	if !ok {
		return false, &orders.NotFoundError{Resource: "item", ID: itemID}
	}
	if it.Stock < qty {
		return false, nil
	}
	it.Stock -= qty
	c.items[itemID] = it
	return true, nil
}

func (c *Catalog) Release(_ context.Context, itemID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[itemID]
	if !ok {
		return &orders.NotFoundError{Resource: "item", ID: itemID}
	}
	it.Stock += qty
	c.items[itemID] = it
	return nil
}

func (c *Catalog) ResolveItems(_ context.Context, ids []string) (map[string]orders.CatalogItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]orders.CatalogItem, len(ids))
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

// Stock returns the current stock of itemID, or -1 if unknown.
func (c *Catalog) Stock(itemID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[itemID]
	if !ok {
		return -1
	}
	return it.Stock
}
