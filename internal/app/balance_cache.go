package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "wallet:balance"

// BalanceCacheKey returns the cache key holding the derived balance of address. Hex
// addresses are case-insensitive, so the key uses the lowercased form.
func BalanceCacheKey(address string) string {
	return balanceKeyPrefix + ":" + strings.ToLower(strings.TrimSpace(address))
}

// CachedBalance is the value stored under a balance cache key.
type CachedBalance struct {
	Address     string          `json:"address"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	LastUpdated time.Time       `json:"last_updated"`
}

// BalanceCache is the key-value store for derived wallet balances. The status service
// only ever removes entries; the balance endpoint reads and populates them.
type BalanceCache interface {
	Remove(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*CachedBalance, bool, error)
	Set(ctx context.Context, key string, value CachedBalance, ttl time.Duration) error
}

// balanceCacheClient is the subset of redis.UniversalClient used by RedisBalanceCache.
type balanceCacheClient interface {
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisBalanceCache stores balances as JSON documents in Redis.
type RedisBalanceCache struct {
	client balanceCacheClient
}

func NewRedisBalanceCache(client redis.UniversalClient) *RedisBalanceCache {
	return newRedisBalanceCache(client)
}

func newRedisBalanceCache(client balanceCacheClient) *RedisBalanceCache {
	return &RedisBalanceCache{client: client}
}

// Remove deletes key. Deleting an absent key is not an error.
func (c *RedisBalanceCache) Remove(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

func (c *RedisBalanceCache) Get(ctx context.Context, key string) (*CachedBalance, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var value CachedBalance
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("decode cached balance %s: %w", key, err)
	}
	return &value, true, nil
}

func (c *RedisBalanceCache) Set(ctx context.Context, key string, value CachedBalance, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached balance %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

// NoopBalanceCache is used when no Redis instance is configured. Every read misses.
type NoopBalanceCache struct{}

func (NoopBalanceCache) Remove(ctx context.Context, key string) error { return nil }

func (NoopBalanceCache) Get(ctx context.Context, key string) (*CachedBalance, bool, error) {
	return nil, false, nil
}

func (NoopBalanceCache) Set(ctx context.Context, key string, value CachedBalance, ttl time.Duration) error {
	return nil
}
