package inventory

import (
	"context"
	"errors"
	"github.com/ariefcatur/storefront-fulfillment/internal/memstore"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

// recordingLedger wraps a memstore catalog and can be told to fail specific calls.
type recordingLedger struct {
	*memstore.Catalog

	mu         sync.Mutex
	calls      []string
	refuse     map[string]bool  // Reserve returns false without touching stock
	reserveErr map[string]error // Reserve returns this error
	releaseErr map[string]error // Release returns this error
}

func newLedger(items ...orders.CatalogItem) *recordingLedger {
	return &recordingLedger{
		Catalog:    memstore.NewCatalog(items...),
		refuse:     map[string]bool{},
		reserveErr: map[string]error{},
		releaseErr: map[string]error{},
	}
}

func (l *recordingLedger) Reserve(ctx context.Context, id string, qty int) (bool, error) {
	l.mu.Lock()
	l.calls = append(l.calls, "reserve:"+id)
	refuse, err := l.refuse[id], l.reserveErr[id]
	l.mu.Unlock()
	if err != nil {
		return false, err
	}
	if refuse {
		return false, nil
	}
	return l.Catalog.Reserve(ctx, id, qty)
}

func (l *recordingLedger) Release(ctx context.Context, id string, qty int) error {
	l.mu.Lock()
	l.calls = append(l.calls, "release:"+id)
	err := l.releaseErr[id]
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return l.Catalog.Release(ctx, id, qty)
}

func catalogItem(id string, price int64, stock int) orders.CatalogItem {
	return orders.CatalogItem{ID: id, Title: "item " + id, PriceCents: price, Stock: stock, IsActive: true}
}

func newCoord(l *recordingLedger) *Coordinator {
	return NewCoordinator(l, l.Catalog, nil)
}

func TestReserveSnapshotsEveryLine(t *testing.T) {
	sale := int64(1500)
	b := catalogItem("B", 2000, 1)
	b.SalePriceCents = &sale
	l := newLedger(catalogItem("A", 1000, 5), b)

	snaps, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "A", snaps[0].ItemID)
	assert.Equal(t, int64(2000), snaps[0].LineTotal())
	assert.Equal(t, int64(1500), snaps[1].LineTotal())
	assert.Equal(t, 3, l.Stock("A"))
	assert.Equal(t, 0, l.Stock("B"))
}

func TestReservePrecheckFailsWithoutSideEffects(t *testing.T) {
	l := newLedger(catalogItem("A", 1000, 5), catalogItem("B", 2000, 1))

	_, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 3},
	})
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "B", ise.ItemID)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, 1, ise.Available)
	assert.Empty(t, l.calls)
	assert.Equal(t, 5, l.Stock("A"))
	assert.Equal(t, 1, l.Stock("B"))
}

func TestReserveUnknownAndInactiveItems(t *testing.T) {
	inactive := catalogItem("C", 100, 10)
	inactive.IsActive = false
	l := newLedger(catalogItem("A", 1000, 5), inactive)

	for _, id := range []string{"missing", "C"} {
		_, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
			{ItemID: "A", Quantity: 1},
			{ItemID: id, Quantity: 1},
		})
		var nf *orders.NotFoundError
		require.ErrorAs(t, err, &nf, id)
		assert.Equal(t, id, nf.ID)
	}
	assert.Empty(t, l.calls)
	assert.Equal(t, 5, l.Stock("A"))
}

func TestReserveValidation(t *testing.T) {
	l := newLedger(catalogItem("A", 1000, 5))
	tests := []struct {
		name  string
		lines []orders.ReservationLine
	}{
		{"empty", nil},
		{"zero qty", []orders.ReservationLine{{ItemID: "A", Quantity: 0}}},
		{"negative qty", []orders.ReservationLine{{ItemID: "A", Quantity: -1}}},
		{"missing id", []orders.ReservationLine{{Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newCoord(l).Reserve(context.Background(), tt.lines)
			assert.ErrorIs(t, err, orders.ErrValidation)
		})
	}
	assert.Empty(t, l.calls)
}

func TestReserveLostRaceUnwindsInReverse(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 5), catalogItem("B", 100, 5), catalogItem("C", 100, 5))
	l.refuse["C"] = true

	_, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 1},
		{ItemID: "C", Quantity: 1},
	})
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "C", ise.ItemID)
	assert.Equal(t, -1, ise.Available)
	assert.Empty(t, ise.Compensation)

	assert.Equal(t, []string{
		"reserve:A", "reserve:B", "reserve:C",
		"release:B", "release:A",
	}, l.calls)
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 5, l.Stock(id), id)
	}
}

func TestReserveLedgerErrorUnwinds(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 5), catalogItem("B", 100, 5))
	boom := errors.New("connection reset")
	l.reserveErr["B"] = boom

	_, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 1},
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 5, l.Stock("A"))
	assert.Equal(t, []string{"reserve:A", "reserve:B", "release:A"}, l.calls)
}

func TestReserveFailedReleaseIsReported(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 5), catalogItem("B", 100, 5), catalogItem("C", 100, 5))
	l.refuse["C"] = true
	l.releaseErr["A"] = errors.New("timeout")

	_, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 1},
		{ItemID: "C", Quantity: 1},
	})
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Len(t, ise.Compensation, 1)
	w := ise.Compensation[0]
	assert.Equal(t, "rollback", w.Op)
	assert.Equal(t, "A", w.ItemID)
	assert.Equal(t, 2, w.Quantity)

	// B was still released after A failed
	assert.Equal(t, 5, l.Stock("B"))
	assert.Equal(t, 3, l.Stock("A"))
}

func TestReserveIgnoresCallerCancellation(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snaps, err := newCoord(l).Reserve(ctx, []orders.ReservationLine{{ItemID: "A", Quantity: 1}})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	assert.Equal(t, 4, l.Stock("A"))
}

func TestReserveDuplicateLines(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 3))

	snaps, err := newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "A", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.Equal(t, 0, l.Stock("A"))

	l.Put(catalogItem("A", 100, 3))
	_, err = newCoord(l).Reserve(context.Background(), []orders.ReservationLine{
		{ItemID: "A", Quantity: 2},
		{ItemID: "A", Quantity: 2},
	})
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 3, l.Stock("A"))
}

func TestRestoreContinuesPastFailures(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 0), catalogItem("B", 100, 0), catalogItem("C", 100, 0))
	l.releaseErr["B"] = errors.New("timeout")

	restored, warnings := newCoord(l).Restore(context.Background(), "o-1", []orders.OrderItemSnapshot{
		{ItemID: "A", Quantity: 2},
		{ItemID: "B", Quantity: 1},
		{ItemID: "C", Quantity: 4},
	})
	assert.Equal(t, []orders.ItemQty{{ItemID: "A", Quantity: 2}, {ItemID: "C", Quantity: 4}}, restored)
	require.Len(t, warnings, 1)
	assert.Equal(t, "cancel", warnings[0].Op)
	assert.Equal(t, "o-1", warnings[0].OrderID)
	assert.Equal(t, 2, l.Stock("A"))
	assert.Equal(t, 0, l.Stock("B"))
	assert.Equal(t, 4, l.Stock("C"))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	l := newLedger(catalogItem("A", 100, 5))
	c := newCoord(l)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Reserve(context.Background(), []orders.ReservationLine{{ItemID: "A", Quantity: 3}})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, orders.ErrConflict)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
	assert.Equal(t, 2, l.Stock("A"))
}
