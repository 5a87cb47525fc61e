package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const balanceKeyPrefix = "credits:balance:"

// BalanceCache is a read-through Redis cache for balance lookups.
//
// It only serves GetBalance reads; Apply never consults it. Values are
// refreshed after successful mutations and expire on a short TTL, so a cache
// outage or stale entry can delay a read but can never corrupt the ledger.
// All methods are nil-safe so the service can run without Redis.
type BalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewBalanceCache(rdb *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BalanceCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached balance; ok=false on miss or any redis failure.
func (c *BalanceCache) Get(ctx context.Context, userID string) (int64, bool) {
	if c == nil || c.rdb == nil {
		return 0, false
	}
	v, err := c.rdb.Get(ctx, balanceKeyPrefix+userID).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores the balance; failures are ignored by callers (best-effort).
func (c *BalanceCache) Set(ctx context.Context, userID string, balance int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, balanceKeyPrefix+userID, strconv.FormatInt(balance, 10), c.ttl).Err()
}

// Invalidate drops the cached balance, e.g. after an account purge.
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	err := c.rdb.Del(ctx, balanceKeyPrefix+userID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
