package inventory

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/storefront-fulfillment/internal/inventory")

// Coordinator reserves multi-item requests as a saga over single-item ledger calls.
type Coordinator struct {
	Ledger  orders.StockLedger
	Catalog orders.CatalogReader
	Log     *zap.Logger
}

func NewCoordinator(ledger orders.StockLedger, catalog orders.CatalogReader, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{Ledger: ledger, Catalog: catalog, Log: log}
}

// Reserve validates lines, reserves them in request order and returns one snapshot per line.
//
// On a failed reserve every earlier reservation of this run is released in reverse order
// before the error is returned. The run ignores caller cancellation once started: it either
// completes or fully compensates.
func (c *Coordinator) Reserve(ctx context.Context, lines []orders.ReservationLine) ([]orders.OrderItemSnapshot, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(attribute.Int("reservation.lines", len(lines)))

	items, err := c.resolve(ctx, lines)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snaps := make([]orders.OrderItemSnapshot, 0, len(lines))
	done := make([]orders.ReservationLine, 0, len(lines))
	for _, ln := range lines {
		item := items[ln.ItemID]
		ok, err := c.Ledger.Reserve(ctx, ln.ItemID, ln.Quantity)
		if err != nil || !ok {
			warnings := c.unwind(ctx, done)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				if len(warnings) > 0 {
					err = errors.Join(err, compensationErr(warnings))
				}
				return nil, fmt.Errorf("reserve %s: %w", ln.ItemID, err)
			}
			span.SetStatus(codes.Error, "insufficient stock")
			c.Log.Info("reservation lost race at ledger",
				zap.String("item_id", ln.ItemID),
				zap.Int("requested", ln.Quantity),
				zap.Int("compensated", len(done)))
			return nil, &orders.InsufficientStockError{
				ItemID:       item.ID,
				Title:        item.Title,
				Requested:    ln.Quantity,
				Available:    -1,
				Compensation: warnings,
			}
		}
		done = append(done, ln)
		snaps = append(snaps, orders.SnapshotOf(item, ln.Quantity))
	}
	return snaps, nil
}

// resolve looks up the catalog once and runs the optimistic pre-check.
// Nothing is mutated here; the ledger is the real guard.
func (c *Coordinator) resolve(ctx context.Context, lines []orders.ReservationLine) (map[string]orders.CatalogItem, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, ln := range lines {
		if _, dup := seen[ln.ItemID]; dup {
			continue
		}
		seen[ln.ItemID] = struct{}{}
		ids = append(ids, ln.ItemID)
	}

	items, err := c.Catalog.ResolveItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog: %w", err)
	}
	for _, ln := range lines {
		item, ok := items[ln.ItemID]
		if !ok || !item.IsActive {
			return nil, &orders.NotFoundError{Resource: "item", ID: ln.ItemID}
		}
		if ln.Quantity > item.Stock {
			return nil, &orders.InsufficientStockError{
				ItemID:    item.ID,
				Title:     item.Title,
				Requested: ln.Quantity,
				Available: item.Stock,
			}
		}
	}
	return items, nil
}

// unwind releases done in LIFO order. Failures are logged and collected, never fatal.
func (c *Coordinator) unwind(ctx context.Context, done []orders.ReservationLine) []orders.CompensationWarning {
	var warnings []orders.CompensationWarning
	for i := len(done) - 1; i >= 0; i-- {
		ln := done[i]
		if err := c.Ledger.Release(ctx, ln.ItemID, ln.Quantity); err != nil {
			w := orders.CompensationWarning{Op: "rollback", ItemID: ln.ItemID, Quantity: ln.Quantity, Err: err}
			c.logDrift(w)
			warnings = append(warnings, w)
		}
	}
	return warnings
}

// Restore releases every snapshot of a cancelled order. It keeps going after a failed
// release so the remaining stock is still returned.
func (c *Coordinator) Restore(ctx context.Context, orderID string, items []orders.OrderItemSnapshot) ([]orders.ItemQty, []orders.CompensationWarning) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "inventory.restore")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	restored := make([]orders.ItemQty, 0, len(items))
	var warnings []orders.CompensationWarning
	for _, it := range items {
		if err := c.Ledger.Release(ctx, it.ItemID, it.Quantity); err != nil {
			w := orders.CompensationWarning{Op: "cancel", OrderID: orderID, ItemID: it.ItemID, Quantity: it.Quantity, Err: err}
			c.logDrift(w)
			warnings = append(warnings, w)
			continue
		}
		restored = append(restored, orders.ItemQty{ItemID: it.ItemID, Quantity: it.Quantity})
	}
	if len(warnings) > 0 {
		span.SetStatus(codes.Error, "partial restore")
	}
	return restored, warnings
}

func (c *Coordinator) logDrift(w orders.CompensationWarning) {
	c.Log.Error("compensating release failed",
		zap.Bool("inventory_drift", true),
		zap.String("op", w.Op),
		zap.String("order_id", w.OrderID),
		zap.String("item_id", w.ItemID),
		zap.Int("quantity", w.Quantity),
		zap.Error(w.Err))
}

// ValidateLines rejects empty or malformed requests before any side effect.
func ValidateLines(lines []orders.ReservationLine) error {
	if len(lines) == 0 {
		return &orders.ValidationError{Field: "items", Reason: "must not be empty"}
	}
	for i, ln := range lines {
		if ln.ItemID == "" {
			return &orders.ValidationError{Field: fmt.Sprintf("items[%d].item_id", i), Reason: "is required"}
		}
		if ln.Quantity <= 0 {
			return &orders.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be greater than zero"}
		}
	}
	return nil
}

func compensationErr(ws []orders.CompensationWarning) error {
	errs := make([]error, len(ws))
	for i, w := range ws {
		errs[i] = w
	}
	return errors.Join(errs...)
}
