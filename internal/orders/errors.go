package orders

import (
	"errors"
	"fmt"
	"strings"
)

// Error families. Every typed error below unwraps to exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrAlreadyPaid lets callers treat a repeated payment confirmation as a no-op.
	ErrAlreadyPaid = errors.New("order is already paid")

	// ErrStaleOrder is returned by a Store when a conditional update lost the race.
	ErrStaleOrder = errors.New("order was modified concurrently")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotFoundError struct {
	Resource string // "order" | "item"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError names the item that could not be reserved.
// Compensation lists releases that failed while unwinding earlier reservations.
type InsufficientStockError struct {
	ItemID       string
	Title        string
	Requested    int
	Available    int // -1 when unknown (lost the race at the ledger)
	Compensation []CompensationWarning
}

func (e *InsufficientStockError) Error() string {
	name := e.ItemID
	if e.Title != "" {
		name = fmt.Sprintf("%q (%s)", e.Title, e.ItemID)
	}
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for item %s: requested %d", name, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrConflict }

type IllegalTransitionError struct {
	OrderID string
	From    Status
	To      Status
	Allowed []Status
}

func (e *IllegalTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		parts := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			parts[i] = string(s)
		}
		allowed = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("cannot transition order %s from %q to %q; allowed transitions: %s", e.OrderID, e.From, e.To, allowed)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrConflict }

type AlreadyPaidError struct {
	OrderID         string
	PaymentIntentID string
}

func (e *AlreadyPaidError) Error() string {
	return fmt.Sprintf("order %s is already paid (payment %s)", e.OrderID, e.PaymentIntentID)
}

func (e *AlreadyPaidError) Unwrap() []error { return []error{ErrConflict, ErrAlreadyPaid} }

type OwnershipError struct {
	OrderID     string
	RequestorID string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("requestor %s does not own order %s", e.RequestorID, e.OrderID)
}

func (e *OwnershipError) Unwrap() error { return ErrConflict }

type PaymentReferenceMismatchError struct {
	OrderID  string
	Issued   string
	Supplied string
}

func (e *PaymentReferenceMismatchError) Error() string {
	return fmt.Sprintf("payment reference %s does not match intent %s issued for order %s", e.Supplied, e.Issued, e.OrderID)
}

func (e *PaymentReferenceMismatchError) Unwrap() error { return ErrConflict }

// CompensationWarning records a release that failed during rollback or cancellation.
// It is never the primary error of an operation; it means stock drifted.
type CompensationWarning struct {
	Op       string // "rollback" | "cancel"
	OrderID  string
	ItemID   string
	Quantity int
	Err      error
}

func (w CompensationWarning) Error() string {
	return fmt.Sprintf("compensation %s: release %d of item %s failed: %v", w.Op, w.Quantity, w.ItemID, w.Err)
}

func (w CompensationWarning) Unwrap() error { return w.Err }
