package reindex

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docinx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIterator_Batches(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusReady, 5, 0)

	var sizes []int
	var indexes []int
	err := NewChunkIterator(store, 2).ForEach(context.Background(), "d1", func(chunks []*core.Chunk) error {
		sizes = append(sizes, len(chunks))
		for _, c := range chunks {
			indexes = append(indexes, c.Index)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indexes)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(nil, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewChunkIterator(nil, -3).batchSize)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusReady, 5, 0)

	boom := errors.New("boom")
	calls := 0
	err := NewChunkIterator(store, 2).ForEach(context.Background(), "d1", func([]*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_Cancelled(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusReady, 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewChunkIterator(store, 1).ForEach(ctx, "d1", func([]*core.Chunk) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestChunkIterator_UnknownDocument(t *testing.T) {
	store := setupStore(t)
	called := false
	err := NewChunkIterator(store, 1).ForEach(context.Background(), "missing", func([]*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
