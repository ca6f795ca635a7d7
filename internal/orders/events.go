package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderPaid          = "OrderPaid"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventInventoryDrift     = "InventoryDrift"
	EventPaymentSucceeded   = "PaymentSucceeded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "fulfillment-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ItemQty struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type OrderCreatedPayload struct {
	OrderID    string    `json:"order_id"`
	OwnerID    string    `json:"owner_id"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
}

type OrderPaidPayload struct {
	OrderID     string `json:"order_id"`
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	Reason   string    `json:"reason,omitempty"`
	Restored []ItemQty `json:"restored"`
	Failed   []ItemQty `json:"failed,omitempty"`
}

// InventoryDriftPayload reports stock that could not be restored.
type InventoryDriftPayload struct {
	OrderID  string `json:"order_id,omitempty"`
	Op       string `json:"op"` // rollback | cancel
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Error    string `json:"error"`
}

// PaymentSucceededPayload is consumed from the payment provider bridge.
type PaymentSucceededPayload struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

func ItemsOf(snaps []OrderItemSnapshot) []ItemQty {
	out := make([]ItemQty, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, ItemQty{ItemID: s.ItemID, Quantity: s.Quantity})
	}
	return out
}
