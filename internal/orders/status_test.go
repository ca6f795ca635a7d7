package orders

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusPaid, StatusShipped, true},
		{StatusPaid, StatusCancelled, true},
		{StatusPaid, StatusPending, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusPaid, false},
		{StatusPending, StatusPending, false},
		{Status("bogus"), StatusPaid, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAllowedTransitions(t *testing.T) {
	assert.Equal(t, []Status{StatusPaid, StatusCancelled}, StatusPending.AllowedTransitions())
	assert.Equal(t, []Status{StatusShipped, StatusCancelled}, StatusPaid.AllowedTransitions())
	assert.Equal(t, []Status{StatusDelivered}, StatusShipped.AllowedTransitions())
	assert.Empty(t, StatusDelivered.AllowedTransitions())
	assert.Empty(t, StatusCancelled.AllowedTransitions())

	// callers get a copy
	got := StatusPending.AllowedTransitions()
	got[0] = StatusDelivered
	assert.Equal(t, StatusPaid, StatusPending.AllowedTransitions()[0])
}

func TestStatusValidAndTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("refunded").Valid())
	assert.False(t, Status("").Valid())

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusShipped.Terminal())
}
