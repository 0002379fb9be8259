package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"inventory-service/internal/util"

	"github.com/go-redis/redis/v8"
)

// Client is the process-wide query cache for expensive aggregate reads.
// Entries expire by TTL only; writers never invalidate. Availability
// decisions always bypass this cache and read the store directly.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheKey builds a deterministic key from an operation name and its
// parameters. Identical queries hash to the same entry.
func CacheKey(operation string, params ...interface{}) string {
	h := fnv.New64a()
	fmt.Fprint(h, operation)
	for _, p := range params {
		fmt.Fprintf(h, "|%v", p)
	}
	return fmt.Sprintf("query:%s:%x", operation, h.Sum64())
}

// GetJSON loads a cached value into dest. Returns false on miss or expiry.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return true, nil
}

// SetJSON stores a value with a TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Invalidate drops a cache entry ahead of its TTL
func (c *Client) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Cached memoizes compute under the given key for ttl. A nil client degrades
// to compute-through, so the cache is never required for correctness. Cache
// failures fall back to compute; staleness is bounded by the TTL.
func Cached[T any](ctx context.Context, c *Client, operation, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}

	var cached T
	hit, err := c.GetJSON(ctx, key, &cached)
	if err == nil && hit {
		util.CacheHitsTotal.WithLabelValues(operation).Inc()
		return cached, nil
	}
	util.CacheMissesTotal.WithLabelValues(operation).Inc()

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	if err := c.SetJSON(ctx, key, value, ttl); err != nil {
		util.GetLogger().Warn(fmt.Sprintf("failed to cache %s result: %v", operation, err))
	}
	return value, nil
}
