package cache

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartsmash/resolver/internal/domain"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), RedisCacheConfig{
		URL:    "redis://" + mr.Addr(),
		Prefix: "cartsmash:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisCacheConfig{URL: "not a url"})
	assert.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisCacheConfig{URL: "redis://" + addr})
	assert.Error(t, err)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	entry := resolvedEntry("cartsmash:milk:r1:2:", time.Now(), 30*time.Minute)
	require.NoError(t, cache.Set(ctx, entry))

	got, err := cache.Get(ctx, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, entry.Key, got.Key)
	assert.Equal(t, entry.TTL, got.TTL)
	require.NotNil(t, got.Resolution.Match)
	assert.Equal(t, "Whole Milk", got.Resolution.Match.Product.Name)

	ttl := mr.TTL(entry.Key)
	assert.True(t, ttl > 29*time.Minute && ttl <= 30*time.Minute, "ttl = %v", ttl)
}

func TestRedisCache_Expiry(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, failedEntry("cartsmash:gone", time.Now(), 5*time.Minute)))
	mr.FastForward(5*time.Minute + time.Second)

	_, err := cache.Get(ctx, "cartsmash:gone")
	assert.True(t, errors.Is(err, domain.ErrCacheMiss), "err = %v", err)
}

func TestRedisCache_SetAlreadyExpiredDeletes(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, failedEntry("cartsmash:old", time.Now(), time.Minute)))
	require.NoError(t, cache.Set(ctx, failedEntry("cartsmash:old", time.Now().Add(-time.Hour), time.Minute)))

	assert.False(t, mr.Exists("cartsmash:old"))
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	_, err := cache.Get(context.Background(), "cartsmash:nothing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_CorruptValue(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	require.NoError(t, mr.Set("cartsmash:bad", "{not json"))

	_, err := cache.Get(context.Background(), "cartsmash:bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrCacheMiss))
}

func TestRedisCache_KeysDeleteAndPurge(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, resolvedEntry("cartsmash:a", time.Now(), time.Minute)))
	require.NoError(t, cache.Set(ctx, failedEntry("cartsmash:b", time.Now(), time.Minute)))
	require.NoError(t, mr.Set("other:c", "x"))

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"cartsmash:a", "cartsmash:b"}, keys)

	require.NoError(t, cache.Delete(ctx, "cartsmash:a"))
	keys, _ = cache.Keys(ctx)
	assert.Equal(t, []string{"cartsmash:b"}, keys)

	purged, err := cache.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestRedisCache_WithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewRedisCacheWithClient(client, "p:")
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), failedEntry("p:x", time.Now(), time.Minute)))
	assert.True(t, mr.Exists("p:x"))
}
