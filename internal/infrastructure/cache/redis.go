package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cartsmash/resolver/internal/domain"
)

// RedisCacheConfig holds Redis connection configuration
type RedisCacheConfig struct {
	URL    string // redis://[:password@]host:port/db
	Prefix string
}

// RedisCache shares resolutions between resolver instances.
// Expiry is left to Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisCacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisCacheWithClient(client, cfg.Prefix), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, now: time.Now}
}

// Get retrieves an entry from Redis
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if entry.Expired(c.now()) {
		return nil, domain.ErrCacheMiss
	}

	return &entry, nil
}

// Set stores an entry with the remainder of its TTL
func (c *RedisCache) Set(ctx context.Context, entry *domain.CacheEntry) error {
	ttl := entry.TTL
	if !entry.InsertedAt.IsZero() {
		ttl = time.Until(entry.InsertedAt.Add(entry.TTL))
	}
	// A zero TTL means no expiry in Redis
	if ttl <= 0 {
		return c.Delete(ctx, entry.Key)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes an entry from Redis
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Keys lists the keys under the cache prefix
func (c *RedisCache) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	return keys, nil
}

// PurgeExpired is a no-op: Redis expires keys itself
func (c *RedisCache) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
