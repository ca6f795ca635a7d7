package memstore

import (
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"io"
)

// DecodeCatalog reads a JSON array of catalog items.
func DecodeCatalog(r io.Reader) ([]orders.CatalogItem, error) {
	var items []orders.CatalogItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("catalog seed entry %d: missing id", i)
		}
		if it.Stock < 0 || it.PriceCents < 0 {
			return nil, fmt.Errorf("catalog seed entry %s: negative stock or price", it.ID)
		}
	}
	return items, nil
}
