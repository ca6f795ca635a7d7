package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefunded        PaymentStatus = "refunded"
)

// validNext keeps the allowed targets in a stable order for error messages.
var validNext = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransitionTo reports whether target is a legal next status.
func (s Status) CanTransitionTo(target Status) bool {
	for _, n := range validNext[s] {
		if n == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the legal next statuses.
func (s Status) AllowedTransitions() []Status {
	next := validNext[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

func CanTransition(from, to Status) bool {
	return from.CanTransitionTo(to)
}
