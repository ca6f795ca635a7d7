package orders

import "time"

// CatalogItem is the catalog view the engine reads. Prices are in minor units.
type CatalogItem struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PriceCents     int64  `json:"price_cents"`
	SalePriceCents *int64 `json:"sale_price_cents,omitempty"`
	Stock          int    `json:"stock"`
	IsActive       bool   `json:"is_active"`
}

// EffectivePrice returns the sale price when present, otherwise the regular price.
func (c CatalogItem) EffectivePrice() int64 {
	if c.SalePriceCents != nil {
		return *c.SalePriceCents
	}
	return c.PriceCents
}

// ReservationLine is one (item, quantity) entry of an order request.
// Duplicate item ids are kept as separate lines.
type ReservationLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type ShippingAddress struct {
	FullName string `json:"full_name"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Phone    string `json:"phone,omitempty"`
}

// Validate checks the required address fields.
func (a ShippingAddress) Validate() error {
	required := []struct{ name, value string }{
		{"shipping_address.full_name", a.FullName},
		{"shipping_address.street", a.Street},
		{"shipping_address.city", a.City},
		{"shipping_address.state", a.State},
		{"shipping_address.postcode", a.Postcode},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	return nil
}

// OrderItemSnapshot freezes catalog data at reservation time.
type OrderItemSnapshot struct {
	ItemID             string `json:"item_id"`
	Quantity           int    `json:"quantity"`
	UnitPriceCents     int64  `json:"unit_price_cents"`
	UnitSalePriceCents *int64 `json:"unit_sale_price_cents,omitempty"`
	Title              string `json:"title"`
}

func (s OrderItemSnapshot) EffectiveUnitPrice() int64 {
	if s.UnitSalePriceCents != nil {
		return *s.UnitSalePriceCents
	}
	return s.UnitPriceCents
}

func (s OrderItemSnapshot) LineTotal() int64 {
	return s.EffectiveUnitPrice() * int64(s.Quantity)
}

// SnapshotOf copies the fields of item that an order must keep.
func SnapshotOf(item CatalogItem, qty int) OrderItemSnapshot {
	var sale *int64
	if item.SalePriceCents != nil {
		v := *item.SalePriceCents
		sale = &v
	}
	return OrderItemSnapshot{
		ItemID:             item.ID,
		Quantity:           qty,
		UnitPriceCents:     item.PriceCents,
		UnitSalePriceCents: sale,
		Title:              item.Title,
	}
}

type Order struct {
	ID                    string              `json:"id"`
	OwnerID               string              `json:"owner_id"`
	Items                 []OrderItemSnapshot `json:"items"`
	TotalCents            int64               `json:"total_cents"`
	Status                Status              `json:"status"`
	PaymentStatus         PaymentStatus       `json:"payment_status"`
	PaymentIntentID       string              `json:"payment_intent_id,omitempty"`
	IssuedPaymentIntentID string              `json:"issued_payment_intent_id,omitempty"`
	ShippingAddress       ShippingAddress     `json:"shipping_address"`
	Currency              string              `json:"currency"`
	CancellationReason    string              `json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	PaidAt                *time.Time          `json:"paid_at,omitempty"`
	ShippedAt             *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt           *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt           *time.Time          `json:"cancelled_at,omitempty"`
	// Version is bumped by every store update and used for conditional writes.
	Version int64 `json:"version"`
}

// NewOrder builds a pending order from snapshots. The total is computed here once.
func NewOrder(id, ownerID string, items []OrderItemSnapshot, addr ShippingAddress, currency string, now time.Time) Order {
	var total int64
	for _, it := range items {
		total += it.LineTotal()
	}
	return Order{
		ID:              id,
		OwnerID:         ownerID,
		Items:           items,
		TotalCents:      total,
		Status:          StatusPending,
		PaymentStatus:   PaymentRequiresPayment,
		ShippingAddress: addr,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy so callers cannot mutate stored snapshots.
func (o Order) Clone() Order {
	c := o
	c.Items = make([]OrderItemSnapshot, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		if it.UnitSalePriceCents != nil {
			v := *it.UnitSalePriceCents
			c.Items[i].UnitSalePriceCents = &v
		}
	}
	c.PaidAt = cloneTime(o.PaidAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// PaymentIntent is handed to the client to complete payment with the provider.
type PaymentIntent struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	ClientSecret string `json:"client_secret"`
}
