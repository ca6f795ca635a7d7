package orders

import (
	"context"
	"time"
)

// StockLedger owns the per-item stock counters.
//
// Reserve must check and decrement in one conditional step: it returns false
// (and no error) when the current stock is below qty. Release increments
// unconditionally and fails only for unknown items.
type StockLedger interface {
	Reserve(ctx context.Context, itemID string, qty int) (bool, error)
	Release(ctx context.Context, itemID string, qty int) error
}

// CatalogReader resolves item ids to their current catalog data.
// Unknown ids are simply absent from the returned map.
type CatalogReader interface {
	ResolveItems(ctx context.Context, ids []string) (map[string]CatalogItem, error)
}

// Store persists orders. Update is conditional on o.Version matching the
// stored version and returns ErrStaleOrder otherwise; on success the stored
// version is o.Version+1.
type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	Update(ctx context.Context, o Order) error
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
