// Package payments applies payment.succeeded events from the payment provider bridge.
package payments

import (
	"context"
	"errors"
	kafkax "github.com/ariefcatur/storefront-fulfillment/internal/kafka"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Payer is the part of the fulfillment service the handler drives.
type Payer interface {
	MarkPaid(ctx context.Context, orderID, paymentRef string) (orders.Order, error)
}

// Deduper claims event ids so redelivered messages are applied once.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Handler struct {
	Payer Payer
	Dedup Deduper
	Log   *zap.Logger
}

// HandlePaymentSucceeded is installed as the consumer handler.
// A returned error leaves the offset uncommitted and the consumer retries the message.
func (h *Handler) HandlePaymentSucceeded(ctx context.Context, m kafkago.Message) error {
	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// poison message, retrying cannot help
		log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentSucceeded {
		return nil
	}

	if h.Dedup != nil {
		first, err := h.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			log.Debug("duplicate payment event", zap.String("event_id", env.EventID))
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.PaymentSucceededPayload](env.Payload)
	if err != nil {
		log.Error("drop payment event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	_, err = h.Payer.MarkPaid(ctx, p.OrderID, p.PaymentRef)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orders.ErrAlreadyPaid):
		log.Info("payment already applied", zap.String("order_id", p.OrderID), zap.String("payment_ref", p.PaymentRef))
		return nil
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrValidation), errors.Is(err, orders.ErrConflict):
		log.Warn("payment event rejected",
			zap.String("order_id", p.OrderID),
			zap.String("payment_ref", p.PaymentRef),
			zap.Error(err))
		return nil
	}

	// transient failure: release the claim so the retry is processed
	if h.Dedup != nil {
		if ferr := h.Dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
			log.Warn("release dedup claim", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
	}
	return err
}
