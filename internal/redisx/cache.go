package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/storefront-fulfillment/internal/orders"
	"github.com/redis/go-redis/v9"
	"time"
)

// setIfNewer writes the document unless the entry already holds a higher version.
// KEYS[1] order key; ARGV[1] version, ARGV[2] document, ARGV[3] ttl in ms.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'doc', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// OrderCache stores whole order documents with a short TTL. Each entry is a
// hash of the document and its version, so a slow writer holding an older
// copy cannot replace a newer one.
type OrderCache struct {
	RDB redis.Cmdable
	TTL time.Duration
}

func NewOrderCache(rdb redis.Cmdable, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = TTLOrderCache
	}
	return &OrderCache{RDB: rdb, TTL: ttl}
}

func (c *OrderCache) Get(ctx context.Context, id string) (orders.Order, bool, error) {
	s, err := c.RDB.HGet(ctx, fmt.Sprintf(KeyOrder, id), "doc").Bytes()
	if errors.Is(err, redis.Nil) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, err
	}
	var o orders.Order
	if err := json.Unmarshal(s, &o); err != nil {
		return orders.Order{}, false, fmt.Errorf("decode cached order %s: %w", id, err)
	}
	return o, true, nil
}

// Set caches o unless a newer version is already cached.
func (c *OrderCache) Set(ctx context.Context, o orders.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyOrder, o.ID)
	return setIfNewer.Run(ctx, c.RDB, []string{key}, o.Version, b, c.TTL.Milliseconds()).Err()
}

func (c *OrderCache) Delete(ctx context.Context, id string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrder, id)).Err()
}
