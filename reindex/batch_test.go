package reindex

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubChain answers with a fixed provider per chunk content.
type stubChain struct {
	providers map[string]string
}

func (s *stubChain) Execute(_ context.Context, text string) fallback.Result[[]float32] {
	provider, ok := s.providers[text]
	if !ok {
		provider = "openai"
	}
	return fallback.Result[[]float32]{Value: []float32{1, 0}, Provider: provider}
}

type failingChunks struct {
	storage.ChunkRepository
}

func (failingChunks) UpdateChunkEmbeddings(context.Context, string, []storage.ChunkEmbedding, storage.DocumentUpdate) error {
	return errors.New("transaction conflict")
}

func TestBatchProcessor_Process(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusReady, 3, 0)
	chunks, err := store.GetChunks(context.Background(), "d1")
	require.NoError(t, err)

	chain := &stubChain{providers: map[string]string{chunks[1].Content: "hash_fallback"}}
	bp := NewBatchProcessor(store, chain, DefaultConfig().DegradedProviders)

	res, err := bp.Process(context.Background(), "d1", chunks)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Succeeded: 2, Failed: 1}, res)

	stored, err := store.GetChunks(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "openai", stored[0].EmbeddingProvider)
	assert.Nil(t, stored[1].Embedding, "degraded vectors are not stored")
	assert.Equal(t, "openai", stored[2].EmbeddingProvider)
}

func TestBatchProcessor_Empty(t *testing.T) {
	bp := NewBatchProcessor(failingChunks{}, &stubChain{}, nil)
	res, err := bp.Process(context.Background(), "d1", nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestBatchProcessor_CommitFailure(t *testing.T) {
	bp := NewBatchProcessor(failingChunks{}, &stubChain{}, nil)
	chunks := []*core.Chunk{{ID: "c1", Content: "a"}, {ID: "c2", Content: "b"}}

	res, err := bp.Process(context.Background(), "d1", chunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction conflict")
	assert.Equal(t, BatchResult{Failed: 2}, res)
}
