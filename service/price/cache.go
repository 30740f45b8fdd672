package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{quotes: make(map[string]Quote)}
}

func (c *MemoryCache) Get(ctx context.Context, id string) (Quote, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[id]
	return q, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, q Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.ID] = q
	return nil
}

const (
	redisKeyPrefix = "walletlens:price:"
	// DefaultRedisRetention bounds how long a quote stays usable as a stale fallback.
	DefaultRedisRetention = 7 * 24 * time.Hour
)

// RedisCache is a Cache shared between processes through Redis. Quotes are
// stored as JSON; freshness is decided from FetchedAt, not from the key TTL.
type RedisCache struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCache wraps an existing client. retention <= 0 selects DefaultRedisRetention.
func NewRedisCache(client *redis.Client, retention time.Duration) *RedisCache {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisCache{client: client, retention: retention}
}

// DialRedis connects to the Redis server at url (redis://...) and verifies it with a ping.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (Quote, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("redis get: %w", err)
	}

	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return q, true, nil
}

func (c *RedisCache) Set(ctx context.Context, q Quote) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+q.ID, raw, c.retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
