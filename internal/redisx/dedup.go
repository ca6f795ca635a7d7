package redisx

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"time"
)

// Dedup remembers processed event ids per consumer.
type Dedup struct {
	RDB     redis.Cmdable
	Service string
	TTL     time.Duration
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{RDB: rdb, Service: service, TTL: TTLDedup}
}

// Claim marks eventID as taken and reports whether this caller got it first.
func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.RDB.SetNX(ctx, d.key(eventID), "1", d.TTL).Result()
}

// Forget drops a claim so a failed event can be retried.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.RDB.Del(ctx, d.key(eventID)).Err()
}

func (d *Dedup) key(eventID string) string {
	return fmt.Sprintf(KeyDedup, d.Service, eventID)
}
