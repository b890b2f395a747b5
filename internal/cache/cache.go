// Package cache provides a bounded, TTL-expiring in-memory cache shared by
// the weather and elevation data services.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds configuration for a Cache.
type Config struct {
	// TTL is how long an entry stays valid after insertion.
	// Default: 24 hours
	TTL time.Duration

	// MaxEntries bounds the cache size. When full, the oldest inserted entry is evicted.
	// Default: 10000
	MaxEntries int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats reports cache counters.
type Stats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
}

// Cache is a mutex-guarded map with an explicit insertion-order index.
// Insert and evict happen under one lock.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	ttl   time.Duration
	max   int
	now   func() time.Time
	stats Stats
}

// New creates a Cache, applying defaults for zero config fields.
func New[V any](cfg Config) *Cache[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache[V]{
		items: make(map[string]*list.Element),
		order: list.New(),
		ttl:   cfg.TTL,
		max:   cfg.MaxEntries,
		now:   cfg.Now,
	}
}

// Get returns the value for key when present and not expired.
// Expired entries are evicted on lookup.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.remove(el)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}

	c.stats.Hits++
	return e.value, true
}

// Set stores value under key. Re-setting a key refreshes its insertion time.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}

	for c.order.Len() >= c.max {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.remove(oldest)
		c.stats.Evictions++
	}

	el := c.order.PushBack(&entry[V]{key: key, value: value, insertedAt: c.now()})
	c.items[key] = el
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of entries, including ones not yet evicted for expiry.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	return s
}

func (c *Cache[V]) remove(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(c.items, e.key)
	c.order.Remove(el)
}
