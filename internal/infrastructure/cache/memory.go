package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cartsmash/resolver/internal/domain"
)

// cacheItem is a JSON-encoded entry with its expiration
type cacheItem struct {
	Value      []byte
	Expiration time.Time
}

// MemoryCacheConfig holds configuration for the memory cache
type MemoryCacheConfig struct {
	// SweepInterval enables a background purge of expired entries when > 0
	SweepInterval time.Duration
	Now           func() time.Time
}

// MemoryCache is a thread-safe in-memory resolution cache with per-entry TTLs.
// Expired entries are evicted lazily on read.
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config MemoryCacheConfig) *MemoryCache {
	now := config.Now
	if now == nil {
		now = time.Now
	}

	cache := &MemoryCache{
		data: make(map[string]cacheItem),
		now:  now,
		stop: make(chan struct{}),
	}

	if config.SweepInterval > 0 {
		go cache.sweep(config.SweepInterval)
	}

	return cache
}

// Get retrieves an entry from the cache, evicting it if expired
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	c.mutex.RLock()
	item, exists := c.data[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, domain.ErrCacheMiss
	}

	if c.now().After(item.Expiration) {
		c.mutex.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it
		if current, ok := c.data[key]; ok && c.now().After(current.Expiration) {
			delete(c.data, key)
		}
		c.mutex.Unlock()
		return nil, domain.ErrCacheMiss
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

// Set stores an entry in the cache until InsertedAt + TTL
func (c *MemoryCache) Set(ctx context.Context, entry *domain.CacheEntry) error {
	// Serialize to JSON so readers always get a fresh copy
	// This mimics Redis behavior
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	insertedAt := entry.InsertedAt
	if insertedAt.IsZero() {
		insertedAt = c.now()
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[entry.Key] = cacheItem{
		Value:      jsonData,
		Expiration: insertedAt.Add(entry.TTL),
	}

	return nil
}

// Delete removes an entry from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// Keys returns the keys of all live entries
func (c *MemoryCache) Keys(ctx context.Context) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	keys := make([]string, 0, len(c.data))
	for key, item := range c.data {
		if !now.After(item.Expiration) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// PurgeExpired removes all expired entries and returns how many were removed
func (c *MemoryCache) PurgeExpired(ctx context.Context) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	purged := 0
	for key, item := range c.data {
		if now.After(item.Expiration) {
			delete(c.data, key)
			purged++
		}
	}

	return purged, nil
}

// Size returns the number of stored entries, including expired ones not yet evicted
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all entries from the cache
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}

// Stop ends the background sweep. Safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// sweep removes expired entries periodically
func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = c.PurgeExpired(context.Background())
		case <-c.stop:
			return
		}
	}
}
