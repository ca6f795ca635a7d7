// Package fulfillment is the order engine: it creates orders through the
// reservation saga and drives every later lifecycle change.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/inventory"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"time"
)

var tracer = otel.Tracer("github.com/ariefcatur/storefront-fulfillment/internal/fulfillment")

// Publisher emits lifecycle events. Failures never fail the operation.
type Publisher interface {
	Publish(ctx context.Context, env orders.Envelope) error
}

// Cache is a best-effort read cache for orders.
type Cache interface {
	Get(ctx context.Context, id string) (orders.Order, bool, error)
	Set(ctx context.Context, o orders.Order) error
}

type Deps struct {
	Store       orders.Store
	Coordinator *inventory.Coordinator
	Publisher   Publisher
	Cache       Cache
	Clock       orders.Clock
	Log         *zap.Logger
	NewID       func() string

	ServiceName string
	Currency    string
	// VerifyPaymentReference rejects confirmations whose reference differs
	// from the intent issued for the order.
	VerifyPaymentReference bool
}

type Service struct {
	store       orders.Store
	coord       *inventory.Coordinator
	pub         Publisher
	cache       Cache
	clock       orders.Clock
	log         *zap.Logger
	newID       func() string
	serviceName string
	currency    string
	verifyRef   bool
}

func New(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		coord:       d.Coordinator,
		pub:         d.Publisher,
		cache:       d.Cache,
		clock:       d.Clock,
		log:         d.Log,
		newID:       d.NewID,
		serviceName: d.ServiceName,
		currency:    d.Currency,
		verifyRef:   d.VerifyPaymentReference,
	}
	if s.clock == nil {
		s.clock = orders.SystemClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.serviceName == "" {
		s.serviceName = "fulfillment"
	}
	if s.currency == "" {
		s.currency = "aud"
	}
	return s
}

// CreateOrder reserves stock for lines and persists a pending order with item snapshots.
func (s *Service) CreateOrder(ctx context.Context, ownerID string, lines []orders.ReservationLine, addr orders.ShippingAddress) (orders.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.create_order")
	defer span.End()

	if ownerID == "" {
		return orders.Order{}, fail(span, &orders.ValidationError{Field: "owner_id", Reason: "is required"})
	}
	if err := inventory.ValidateLines(lines); err != nil {
		return orders.Order{}, fail(span, err)
	}
	if err := addr.Validate(); err != nil {
		return orders.Order{}, fail(span, err)
	}

	snaps, err := s.coord.Reserve(ctx, lines)
	if err != nil {
		var insufficient *orders.InsufficientStockError
		if errors.As(err, &insufficient) {
			s.reportDrift(ctx, insufficient.Compensation)
		}
		return orders.Order{}, fail(span, err)
	}

	o := orders.NewOrder(s.newID(), ownerID, snaps, addr, s.currency, s.clock.Now())
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := s.store.Create(context.WithoutCancel(ctx), o); err != nil {
		// order never existed, so give the stock back
		_, warnings := s.coord.Restore(ctx, o.ID, snaps)
		s.reportDrift(ctx, warnings)
		return orders.Order{}, fail(span, fmt.Errorf("persist order: %w", err))
	}

	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("owner_id", ownerID),
		zap.Int("items", len(o.Items)),
		zap.Int64("total_cents", o.TotalCents))
	s.cacheSet(ctx, o)
	s.publish(ctx, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		Items:      orders.ItemsOf(o.Items),
		TotalCents: o.TotalCents,
		Currency:   o.Currency,
	})
	return o, nil
}

// MarkPaid confirms payment. A repeated confirmation returns AlreadyPaidError
// and leaves the order exactly as the first call wrote it.
func (s *Service) MarkPaid(ctx context.Context, orderID, paymentRef string) (orders.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.mark_paid", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if paymentRef == "" {
		return orders.Order{}, fail(span, &orders.ValidationError{Field: "payment_ref", Reason: "is required"})
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, fail(span, err)
	}
	if s.verifyRef && o.PaymentStatus != orders.PaymentSucceeded &&
		o.IssuedPaymentIntentID != "" && o.IssuedPaymentIntentID != paymentRef {
		return orders.Order{}, fail(span, &orders.PaymentReferenceMismatchError{
			OrderID: o.ID, Issued: o.IssuedPaymentIntentID, Supplied: paymentRef,
		})
	}
	if err := o.ConfirmPayment(paymentRef, s.clock.Now()); err != nil {
		return orders.Order{}, fail(span, err)
	}
	if err := s.commit(ctx, &o, orders.StatusPaid); err != nil {
		return orders.Order{}, fail(span, err)
	}

	s.log.Info("order paid", zap.String("order_id", o.ID), zap.String("payment_ref", paymentRef))
	s.publish(ctx, orders.EventOrderPaid, o.ID, orders.OrderPaidPayload{
		OrderID: o.ID, PaymentRef: paymentRef, AmountCents: o.TotalCents,
	})
	return o, nil
}

// TransitionStatus covers ship and deliver. Cancellation is routed through CancelOrder
// so stock is restored; payment goes through MarkPaid.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, target orders.Status) (orders.Order, error) {
	if !target.Valid() {
		return orders.Order{}, &orders.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	switch target {
	case orders.StatusCancelled:
		return s.CancelOrder(ctx, orderID, "", true, "")
	case orders.StatusPaid:
		return orders.Order{}, &orders.ValidationError{Field: "status", Reason: "paid is set by payment confirmation"}
	}

	ctx, span := tracer.Start(ctx, "fulfillment.transition_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.target_status", string(target))))
	defer span.End()

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, fail(span, err)
	}
	from := o.Status
	if err := o.Transition(target, s.clock.Now()); err != nil {
		return orders.Order{}, fail(span, err)
	}
	if err := s.commit(ctx, &o, target); err != nil {
		return orders.Order{}, fail(span, err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)))
	s.publish(ctx, orders.EventOrderStatusChanged, o.ID, orders.OrderStatusChangedPayload{
		OrderID: o.ID, From: from, To: target,
	})
	return o, nil
}

// CancelOrder cancels an order and returns its reserved stock.
//
// The cancelled status is claimed with a conditional write first; only the winner
// releases stock, so concurrent cancels cannot restore the same quantities twice.
// Release failures are logged and reported as drift, and the remaining items are
// still released before the call returns.
func (s *Service) CancelOrder(ctx context.Context, orderID, requestorID string, privileged bool, reason string) (orders.Order, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.cancel_order", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, fail(span, err)
	}
	if !privileged && !o.OwnedBy(requestorID) {
		return orders.Order{}, fail(span, &orders.OwnershipError{OrderID: o.ID, RequestorID: requestorID})
	}
	from := o.Status
	if err := o.Cancel(reason, s.clock.Now()); err != nil {
		return orders.Order{}, fail(span, err)
	}
	if err := s.commit(context.WithoutCancel(ctx), &o, orders.StatusCancelled); err != nil {
		return orders.Order{}, fail(span, err)
	}

	restored, warnings := s.coord.Restore(ctx, o.ID, o.Items)
	s.reportDrift(ctx, warnings)

	fields := []zap.Field{
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.Int("restored", len(restored)),
	}
	if len(warnings) > 0 {
		s.log.Error("order cancelled with unrestored stock", append(fields, zap.Int("failed", len(warnings)))...)
	} else {
		s.log.Info("order cancelled", fields...)
	}

	failed := make([]orders.ItemQty, 0, len(warnings))
	for _, w := range warnings {
		failed = append(failed, orders.ItemQty{ItemID: w.ItemID, Quantity: w.Quantity})
	}
	s.publish(ctx, orders.EventOrderCancelled, o.ID, orders.OrderCancelledPayload{
		OrderID: o.ID, Reason: reason, Restored: restored, Failed: failed,
	})
	return o, nil
}

// GetOrder reads through the cache.
func (s *Service) GetOrder(ctx context.Context, orderID string) (orders.Order, error) {
	if s.cache != nil {
		o, ok, err := s.cache.Get(ctx, orderID)
		if err != nil {
			s.log.Debug("order cache get failed", zap.String("order_id", orderID), zap.Error(err))
		} else if ok {
			return o, nil
		}
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	s.cacheSet(ctx, o)
	return o, nil
}

// GetOrderFor hides orders the requestor does not own behind a not-found error.
func (s *Service) GetOrderFor(ctx context.Context, orderID, requestorID string, privileged bool) (orders.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if !privileged && !o.OwnedBy(requestorID) {
		return orders.Order{}, &orders.NotFoundError{Resource: "order", ID: orderID}
	}
	return o, nil
}

// ListOrders returns one page of orders, newest first.
func (s *Service) ListOrders(ctx context.Context, f orders.ListFilter) (orders.Page, error) {
	f = f.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return orders.Page{}, &orders.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", f.Status)}
	}
	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return orders.Page{}, err
	}
	if list == nil {
		list = []orders.Order{}
	}
	return orders.Page{Orders: list, Meta: orders.NewPageMeta(total, f.Page, f.Limit)}, nil
}

// CreatePaymentIntent issues a new payment intent id for an unpaid order.
func (s *Service) CreatePaymentIntent(ctx context.Context, orderID, requestorID string, privileged bool) (orders.PaymentIntent, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.create_payment_intent", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return orders.PaymentIntent{}, fail(span, err)
	}
	if !privileged && !o.OwnedBy(requestorID) {
		return orders.PaymentIntent{}, fail(span, &orders.OwnershipError{OrderID: o.ID, RequestorID: requestorID})
	}
	if o.PaymentStatus == orders.PaymentSucceeded {
		return orders.PaymentIntent{}, fail(span, &orders.AlreadyPaidError{OrderID: o.ID, PaymentIntentID: o.PaymentIntentID})
	}
	if !o.Status.CanTransitionTo(orders.StatusPaid) {
		return orders.PaymentIntent{}, fail(span, &orders.IllegalTransitionError{
			OrderID: o.ID, From: o.Status, To: orders.StatusPaid, Allowed: o.Status.AllowedTransitions(),
		})
	}

	intentID := s.newID()
	o.IssuedPaymentIntentID = intentID
	o.UpdatedAt = s.clock.Now()
	if err := s.commit(ctx, &o, orders.StatusPaid); err != nil {
		return orders.PaymentIntent{}, fail(span, err)
	}
	return orders.PaymentIntent{
		ID:           intentID,
		OrderID:      o.ID,
		AmountCents:  o.TotalCents,
		Currency:     o.Currency,
		ClientSecret: intentID + "_secret_" + s.newID(),
	}, nil
}

// commit writes o conditionally. When another writer won, the fresh state decides
// which conflict the caller sees.
func (s *Service) commit(ctx context.Context, o *orders.Order, target orders.Status) error {
	err := s.store.Update(ctx, *o)
	if err == nil {
		o.Version++
		s.cacheSet(ctx, *o)
		return nil
	}
	if !errors.Is(err, orders.ErrStaleOrder) {
		return err
	}
	fresh, gerr := s.store.Get(ctx, o.ID)
	if gerr != nil {
		return gerr
	}
	s.cacheSet(ctx, fresh)
	if target == orders.StatusPaid && fresh.PaymentStatus == orders.PaymentSucceeded {
		return &orders.AlreadyPaidError{OrderID: fresh.ID, PaymentIntentID: fresh.PaymentIntentID}
	}
	return &orders.IllegalTransitionError{
		OrderID: fresh.ID,
		From:    fresh.Status,
		To:      target,
		Allowed: fresh.Status.AllowedTransitions(),
	}
}

func (s *Service) cacheSet(ctx context.Context, o orders.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, o); err != nil {
		s.log.Debug("order cache set failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// reportDrift publishes every failed compensation; they are already logged by the coordinator.
func (s *Service) reportDrift(ctx context.Context, warnings []orders.CompensationWarning) {
	for _, w := range warnings {
		// rollback drift happens before an order id exists
		key := w.OrderID
		if key == "" {
			key = w.ItemID
		}
		s.publish(ctx, orders.EventInventoryDrift, key, orders.InventoryDriftPayload{
			OrderID:  w.OrderID,
			Op:       w.Op,
			ItemID:   w.ItemID,
			Quantity: w.Quantity,
			Error:    w.Err.Error(),
		})
	}
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	if s.pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	env := orders.Envelope{
		EventID:       s.newID(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.clock.Now().UTC().Truncate(time.Millisecond),
		Producer:      s.serviceName,
		CorrelationID: key,
		Payload:       body,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	if err := s.pub.Publish(ctx, env); err != nil {
		s.log.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.String("correlation_id", key),
			zap.Error(err))
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
