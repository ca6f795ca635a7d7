package memstore

import (
	"context"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"sort"
	"sync"
)

// Orders implements orders.Store with the same version check as the Postgres repo.
type Orders struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[string]orders.Order)}
}

func (s *Orders) Create(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return &orders.ValidationError{Field: "id", Reason: "already exists"}
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Orders) Get(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, &orders.NotFoundError{Resource: "order", ID: id}
	}
	return o.Clone(), nil
}

func (s *Orders) Update(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[o.ID]
	if !ok {
		return &orders.NotFoundError{Resource: "order", ID: o.ID}
	}
	if cur.Version != o.Version {
		return orders.ErrStaleOrder
	}
	next := o.Clone()
	// snapshots and totals are immutable after creation
	next.Items = cur.Items
	next.TotalCents = cur.TotalCents
	next.Version = cur.Version + 1
	s.orders[o.ID] = next
	return nil
}

func (s *Orders) List(_ context.Context, f orders.ListFilter) ([]orders.Order, int, error) {
	f = f.Normalize()
	s.mu.RLock()
	var matched []orders.Order
	for _, o := range s.orders {
		if f.OwnerID != "" && o.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, o.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := f.Offset()
	if start < 0 || start >= total {
		return nil, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
