package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache[V any](t *testing.T, cfg Config[V]) *Cache[V] {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config[string]{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t, DefaultConfig[[]float32]())

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.True(t, c.Put("a", []float32{1, 2}))
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, got)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, DefaultConfig[string]())
	c.Put("a", "x")
	c.Put("b", "y")

	c.Clear()

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, DefaultConfig[string]())
	c.Put("a", "x")
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_TTL(t *testing.T) {
	cfg := DefaultConfig[string]()
	cfg.TTL = 50 * time.Millisecond
	c := newTestCache(t, cfg)

	c.Put("a", "x")
	_, ok := c.Get("a")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCache_CostBound(t *testing.T) {
	c := newTestCache(t, Config[string]{
		NumCounters: 1000,
		MaxCost:     10,
		Cost:        func(s string) int64 { return int64(len(s)) },
	})

	c.Put("huge", "this value costs more than the whole cache")
	_, ok := c.Get("huge")
	assert.False(t, ok)
}
