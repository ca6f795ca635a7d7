package orders

import "time"

// Transition moves the order to target and stamps the matching timestamp.
// The order is left untouched when the move is not allowed.
func (o *Order) Transition(target Status, now time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return &IllegalTransitionError{
			OrderID: o.ID,
			From:    o.Status,
			To:      target,
			Allowed: o.Status.AllowedTransitions(),
		}
	}
	at := now
	switch target {
	case StatusPaid:
		o.PaidAt = &at
	case StatusShipped:
		o.ShippedAt = &at
	case StatusDelivered:
		o.DeliveredAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// ConfirmPayment marks the order paid. A second confirmation is rejected with
// AlreadyPaidError regardless of the reference supplied.
func (o *Order) ConfirmPayment(ref string, now time.Time) error {
	if o.PaymentStatus == PaymentSucceeded {
		return &AlreadyPaidError{OrderID: o.ID, PaymentIntentID: o.PaymentIntentID}
	}
	if err := o.Transition(StatusPaid, now); err != nil {
		return err
	}
	o.PaymentStatus = PaymentSucceeded
	o.PaymentIntentID = ref
	return nil
}

// Cancel moves the order to cancelled and records the reason.
func (o *Order) Cancel(reason string, now time.Time) error {
	if err := o.Transition(StatusCancelled, now); err != nil {
		return err
	}
	o.CancellationReason = reason
	return nil
}

// OwnedBy reports whether requestorID may act on the order without privileges.
func (o Order) OwnedBy(requestorID string) bool {
	return requestorID != "" && o.OwnerID == requestorID
}
