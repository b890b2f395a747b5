package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratotrack/stratotrack/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func TestCache_GetSet(t *testing.T) {
	c := cache.New[int](cache.Config{})

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCache_ExpiresOnLookup(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := cache.New[string](cache.Config{TTL: time.Hour, Now: clock.Now})

	c.Set("k", "v")
	clock.Advance(59 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Expired)
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c := cache.New[int](cache.Config{MaxEntries: 3})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Reading does not change insertion order.
	_, _ = c.Get("a")
	c.Set("d", 4)

	_, ok := c.Get("a")
	assert.False(t, ok)
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_ResetRefreshesOrder(t *testing.T) {
	c := cache.New[int](cache.Config{MaxEntries: 2})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := cache.New[int](cache.Config{MaxEntries: 50})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", n, j)
				c.Set(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := cache.New[int](cache.Config{})
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
