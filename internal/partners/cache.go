package partners

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "partners:balance:version"

// BalanceCache keeps recently read balances in Redis behind a version number.
// Postings bump the version instead of deleting individual keys, so one write
// invalidates every cached balance at once.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache instantiates the cache helper.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

func (c *BalanceCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// FetchBalance loads a cached balance or populates it using the loader.
func (c *BalanceCache) FetchBalance(ctx context.Context, tenantID, partnerID int64, accountType AccountType, currency string, loader func(context.Context) (float64, error)) (float64, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.version(ctx)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("partners:balance:%d:%d:%s:%s:%d", tenantID, partnerID, accountType, currency, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var balance float64
		if err := json.Unmarshal(payload, &balance); err == nil {
			return balance, nil
		}
	}
	balance, err := loader(ctx)
	if err != nil {
		return 0, err
	}
	raw, _ := json.Marshal(balance)
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	return balance, nil
}

// Bump invalidates all cached balances by incrementing the version.
func (c *BalanceCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
