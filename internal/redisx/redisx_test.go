package redisx

import (
	"context"
	"fmt"
	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderCacheRoundTrip(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewOrderCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	o := orders.NewOrder("o-1", "u-1",
		[]orders.OrderItemSnapshot{{ItemID: "A", Quantity: 2, UnitPriceCents: 500, Title: "Mug"}},
		orders.ShippingAddress{FullName: "Sam Lee", Postcode: "2000"}, "aud", created)
	o.Version = 3
	require.NoError(t, c.Set(ctx, o))

	got, ok, err := c.Get(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Items, got.Items)
	assert.Equal(t, int64(1000), got.TotalCents)
	assert.Equal(t, int64(3), got.Version)
	assert.True(t, created.Equal(got.CreatedAt))

	assert.Equal(t, time.Minute, mr.TTL(fmt.Sprintf(KeyOrder, "o-1")))
	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderCacheDefaultsTTLAndDelete(t *testing.T) {
	mr, rdb := newRedis(t)
	c := NewOrderCache(rdb, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, orders.Order{ID: "o-2"}))
	assert.Equal(t, TTLOrderCache, mr.TTL(fmt.Sprintf(KeyOrder, "o-2")))

	require.NoError(t, c.Delete(ctx, "o-2"))
	ok, err := Exists(ctx, rdb, fmt.Sprintf(KeyOrder, "o-2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderCacheCorruptEntry(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.HSet(fmt.Sprintf(KeyOrder, "bad"), "v", "1", "doc", "{not json")

	_, _, err := NewOrderCache(rdb, time.Minute).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestOrderCacheKeepsNewerVersion(t *testing.T) {
	_, rdb := newRedis(t)
	c := NewOrderCache(rdb, time.Minute)
	ctx := context.Background()

	newer := orders.Order{ID: "o-3", Status: orders.StatusPaid, Version: 3}
	older := orders.Order{ID: "o-3", Status: orders.StatusPending, Version: 2}

	// the write carrying v3 lands first; the delayed v2 write must not replace it
	require.NoError(t, c.Set(ctx, newer))
	require.NoError(t, c.Set(ctx, older))

	got, ok, err := c.Get(ctx, "o-3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, orders.StatusPaid, got.Status)

	// same or higher version still refreshes the entry
	newer.Version = 4
	newer.Status = orders.StatusShipped
	require.NoError(t, c.Set(ctx, newer))
	got, _, err = c.Get(ctx, "o-3")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)
}

func TestDedupClaim(t *testing.T) {
	mr, rdb := newRedis(t)
	d := NewDedup(rdb, "payments")
	ctx := context.Background()

	first, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, again)
	assert.True(t, mr.Exists("dedup:payments:ev-1"))

	require.NoError(t, d.Forget(ctx, "ev-1"))
	first, err = d.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestDedupUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	_, err := NewDedup(rdb, "payments").Claim(context.Background(), "ev-1")
	assert.Error(t, err)
}
