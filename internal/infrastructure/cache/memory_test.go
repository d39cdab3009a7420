package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cartsmash/resolver/internal/domain"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func resolvedEntry(key string, insertedAt time.Time, ttl time.Duration) *domain.CacheEntry {
	return &domain.CacheEntry{
		Key: key,
		Resolution: domain.ItemResolution{Match: &domain.ResolvedMatch{
			OriginalItem: domain.RawItem{Name: "milk", Quantity: domain.NewQuantity(2)},
			Product:      domain.CandidateProduct{ID: "p1", SKU: "p1", Name: "Whole Milk", Price: domain.Float(3.49)},
			Confidence:   domain.ConfidenceHigh,
		}},
		InsertedAt: insertedAt,
		TTL:        ttl,
	}
}

func failedEntry(key string, insertedAt time.Time, ttl time.Duration) *domain.CacheEntry {
	return &domain.CacheEntry{
		Key: key,
		Resolution: domain.ItemResolution{Unresolved: &domain.UnresolvedItem{
			OriginalItem: domain.RawItem{Name: "unicorn meat"},
			Reason:       domain.ReasonNoCandidates,
		}},
		InsertedAt: insertedAt,
		TTL:        ttl,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(MemoryCacheConfig{Now: clock.Now})
	ctx := context.Background()

	tests := []struct {
		name  string
		entry *domain.CacheEntry
	}{
		{
			name:  "store and retrieve resolved match",
			entry: resolvedEntry("k1", clock.Now(), 30*time.Minute),
		},
		{
			name:  "store and retrieve unresolved item",
			entry: failedEntry("k2", clock.Now(), 5*time.Minute),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.entry); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := cache.Get(ctx, tt.entry.Key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Key != tt.entry.Key || got.TTL != tt.entry.TTL || !got.InsertedAt.Equal(tt.entry.InsertedAt) {
				t.Errorf("Get() = %+v, want %+v", got, tt.entry)
			}
			if got.Resolution.Resolved() != tt.entry.Resolution.Resolved() {
				t.Errorf("Resolved() = %v, want %v", got.Resolution.Resolved(), tt.entry.Resolution.Resolved())
			}
		})
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(MemoryCacheConfig{Now: clock.Now})
	ctx := context.Background()

	entry := resolvedEntry("k1", clock.Now(), time.Minute)
	_ = cache.Set(ctx, entry)
	entry.Resolution.Match.Product.Name = "mutated"

	got, _ := cache.Get(ctx, "k1")
	got.Resolution.Match.Confidence = domain.ConfidenceLow
	again, _ := cache.Get(ctx, "k1")

	if again.Resolution.Match.Product.Name != "Whole Milk" {
		t.Errorf("stored entry changed through caller pointer: %q", again.Resolution.Match.Product.Name)
	}
	if again.Resolution.Match.Confidence != domain.ConfidenceHigh {
		t.Errorf("stored entry changed through returned value: %q", again.Resolution.Match.Confidence)
	}
	if v, _ := again.Resolution.Match.OriginalItem.Quantity.Value(); v != 2 {
		t.Errorf("quantity = %v, want 2", v)
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheConfig{})

	_, err := cache.Get(context.Background(), "non-existent-key")
	if err != domain.ErrCacheMiss {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_LazyEviction(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(MemoryCacheConfig{Now: clock.Now})
	ctx := context.Background()

	_ = cache.Set(ctx, resolvedEntry("success", clock.Now(), 30*time.Minute))
	_ = cache.Set(ctx, failedEntry("failure", clock.Now(), 5*time.Minute))

	clock.Advance(5*time.Minute + time.Second)

	if _, err := cache.Get(ctx, "failure"); err != domain.ErrCacheMiss {
		t.Errorf("Get(failure) error = %v, want cache miss", err)
	}
	if _, err := cache.Get(ctx, "success"); err != nil {
		t.Errorf("Get(success) error = %v, want hit", err)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1 after lazy eviction", cache.Size())
	}

	clock.Advance(25 * time.Minute)
	if _, err := cache.Get(ctx, "success"); err != domain.ErrCacheMiss {
		t.Errorf("Get(success) error = %v, want cache miss", err)
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, want 0", cache.Size())
	}
}

func TestMemoryCache_ExactlyAtTTLIsLive(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(MemoryCacheConfig{Now: clock.Now})
	ctx := context.Background()

	_ = cache.Set(ctx, failedEntry("k", clock.Now(), time.Minute))
	clock.Advance(time.Minute)

	if _, err := cache.Get(ctx, "k"); err != nil {
		t.Errorf("Get() at exact TTL error = %v, want hit", err)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheConfig{})
	ctx := context.Background()

	_ = cache.Set(ctx, resolvedEntry("k", time.Now(), time.Minute))
	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, "k"); err != domain.ErrCacheMiss {
		t.Errorf("Get() after delete error = %v, want cache miss", err)
	}
	if err := cache.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestMemoryCache_KeysAndPurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewMemoryCache(MemoryCacheConfig{Now: clock.Now})
	ctx := context.Background()

	_ = cache.Set(ctx, resolvedEntry("a", clock.Now(), 30*time.Minute))
	_ = cache.Set(ctx, failedEntry("b", clock.Now(), 5*time.Minute))
	_ = cache.Set(ctx, failedEntry("c", clock.Now(), 5*time.Minute))

	keys, _ := cache.Keys(ctx)
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[a b c]" {
		t.Errorf("Keys() = %v, want [a b c]", keys)
	}

	clock.Advance(10 * time.Minute)

	keys, _ = cache.Keys(ctx)
	if fmt.Sprint(keys) != "[a]" {
		t.Errorf("Keys() after expiry = %v, want [a]", keys)
	}

	purged, err := cache.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if purged != 2 {
		t.Errorf("PurgeExpired() = %d, want 2", purged)
	}
	if cache.Size() != 1 {
		t.Errorf("Size() = %d, want 1", cache.Size())
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheConfig{})
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_ = cache.Set(ctx, resolvedEntry(key, time.Now(), time.Minute))
	}
	cache.Clear()

	if cache.Size() != 0 {
		t.Errorf("Size() after clear = %d, want 0", cache.Size())
	}
}

func TestMemoryCache_Sweep(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheConfig{SweepInterval: 5 * time.Millisecond})
	defer cache.Stop()
	ctx := context.Background()

	_ = cache.Set(ctx, failedEntry("short", time.Now(), time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for cache.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cache.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after sweep", cache.Size())
	}

	cache.Stop()
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%3)
			if err := cache.Set(ctx, resolvedEntry(key, time.Now(), time.Minute)); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			if _, err := cache.Get(ctx, key); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			_, _ = cache.Keys(ctx)
		}(i)
	}
	wg.Wait()
}
