package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotCache keeps recently computed candidate-slot responses in Redis. Each
// plan has a version counter; timeblock writes bump it, which orphans every
// cached entry for the plan without scanning keys. Entries carry a short TTL
// so orphans expire on their own.
//
// Get reports the version it observed and Set stores under that same version.
// A write landing between a caller's Get and Set bumps the counter, so the
// caller's Set targets the old, now-orphaned key and the stale payload is
// never served.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSlotCache(rdb *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func (c *SlotCache) Get(ctx context.Context, planID, variant string) ([]byte, int64, bool) {
	ver, err := c.version(ctx, planID)
	if err != nil {
		return nil, 0, false
	}
	payload, err := c.rdb.Get(ctx, key(planID, ver, variant)).Bytes()
	if err != nil {
		return nil, ver, false
	}
	return payload, ver, true
}

// Set stores the payload under the version the caller observed in Get, never
// the current one.
func (c *SlotCache) Set(ctx context.Context, planID, variant string, version int64, payload []byte) error {
	return c.rdb.Set(ctx, key(planID, version, variant), payload, c.ttl).Err()
}

func (c *SlotCache) Invalidate(ctx context.Context, planID string) error {
	return c.rdb.Incr(ctx, "slots:ver:"+planID).Err()
}

func (c *SlotCache) version(ctx context.Context, planID string) (int64, error) {
	ver, err := c.rdb.Get(ctx, "slots:ver:"+planID).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return ver, nil
}

func key(planID string, version int64, variant string) string {
	sum := sha256.Sum256([]byte(variant))
	return fmt.Sprintf("slots:%s:%d:%s", planID, version, hex.EncodeToString(sum[:8]))
}

// Variant builds the cache key variant from the request parameters that change
// the response.
func Variant(mode, tz, participants string) string {
	return mode + "|" + tz + "|" + participants
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
