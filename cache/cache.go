// Package cache provides a bounded, clearable result cache keyed by string.
//
// It wraps ristretto so callers get TinyLFU admission and cost-based
// eviction with an optional time-to-live, while Put stays synchronous:
// a value stored by Put is visible to the next Get.
package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrInvalidConfig is returned when the cache bounds are not positive.
var ErrInvalidConfig = errors.New("cache: NumCounters and MaxCost must be positive")

// Config bounds a Cache.
type Config[V any] struct {
	// NumCounters is the number of keys tracked for admission. About ten
	// times the expected number of entries works well.
	NumCounters int64
	// MaxCost is the total cost the cache may hold.
	MaxCost int64
	// Cost returns the cost of a value. Defaults to 1 per entry.
	Cost func(V) int64
	// TTL expires entries after the given age. Zero keeps entries until evicted.
	TTL time.Duration
}

// DefaultConfig holds up to about 10,000 entries of cost 1.
func DefaultConfig[V any]() Config[V] {
	return Config[V]{NumCounters: 100_000, MaxCost: 10_000}
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
	cost  func(V) int64
	ttl   time.Duration
}

// New creates a cache bounded by cfg.
func New[V any](cfg Config[V]) (*Cache[V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, ErrInvalidConfig
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	cost := cfg.Cost
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &Cache[V]{store: store, cost: cost, ttl: cfg.TTL}, nil
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.store.Get(key)
}

// Put stores value under key with the configured TTL.
// It reports whether the value was admitted.
func (c *Cache[V]) Put(key string, value V) bool {
	return c.PutWithTTL(key, value, c.ttl)
}

// PutWithTTL stores value under key for ttl. Zero ttl never expires.
func (c *Cache[V]) PutWithTTL(key string, value V, ttl time.Duration) bool {
	ok := c.store.SetWithTTL(key, value, c.cost(value), ttl)
	c.store.Wait()
	return ok
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.store.Del(key)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.store.Clear()
}

// Len returns the approximate number of live entries.
func (c *Cache[V]) Len() int {
	m := c.store.Metrics
	if m == nil {
		return 0
	}
	n := int64(m.KeysAdded()) - int64(m.KeysEvicted())
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close stops the cache's background goroutines.
func (c *Cache[V]) Close() {
	c.store.Close()
}
