package orders

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestErrorFamilies(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		family error
	}{
		{"validation", &ValidationError{Field: "items", Reason: "must not be empty"}, ErrValidation},
		{"not found", &NotFoundError{Resource: "order", ID: "x"}, ErrNotFound},
		{"insufficient", &InsufficientStockError{ItemID: "A", Requested: 3, Available: 1}, ErrConflict},
		{"illegal", &IllegalTransitionError{OrderID: "o", From: StatusShipped, To: StatusCancelled}, ErrConflict},
		{"already paid", &AlreadyPaidError{OrderID: "o"}, ErrConflict},
		{"ownership", &OwnershipError{OrderID: "o", RequestorID: "u"}, ErrConflict},
		{"mismatch", &PaymentReferenceMismatchError{OrderID: "o"}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.family)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.family)
		})
	}
}

func TestAlreadyPaidMatchesBothSentinels(t *testing.T) {
	err := error(&AlreadyPaidError{OrderID: "o", PaymentIntentID: "pi"})
	assert.True(t, errors.Is(err, ErrAlreadyPaid))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestInsufficientStockMessage(t *testing.T) {
	e := &InsufficientStockError{ItemID: "A", Title: "Mug", Requested: 3, Available: 1}
	assert.Equal(t, `insufficient stock for item "Mug" (A): requested 3, available 1`, e.Error())

	e = &InsufficientStockError{ItemID: "A", Requested: 3, Available: -1}
	assert.Equal(t, "insufficient stock for item A: requested 3", e.Error())
}

func TestIllegalTransitionMessageForTerminal(t *testing.T) {
	e := &IllegalTransitionError{OrderID: "o", From: StatusDelivered, To: StatusCancelled}
	assert.Contains(t, e.Error(), "allowed transitions: none")
}

func TestCompensationWarningUnwraps(t *testing.T) {
	cause := errors.New("db down")
	w := CompensationWarning{Op: "rollback", ItemID: "A", Quantity: 2, Err: cause}
	assert.ErrorIs(t, w, cause)
	assert.Contains(t, w.Error(), "release 2 of item A")
}
