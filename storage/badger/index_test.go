package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *Store {
	t.Helper()
	store := setupStore(t)
	ctx := context.Background()

	ready := newDocument("ready", "u1", core.StatusReady)
	require.NoError(t, store.CreateDocument(ctx, ready))
	chunks := newChunks("ready",
		"Refunds are issued within thirty days of purchase.",
		"Shipping takes five business days for domestic orders.",
		"Refunds for damaged shipping boxes require photos of the damage and the refunds form.",
	)
	chunks[0].Embedding = []float32{1, 0, 0}
	chunks[1].Embedding = []float32{0, 1, 0}
	require.NoError(t, store.SaveChunks(ctx, "ready", chunks, storage.DocumentUpdate{}))

	queued := newDocument("queued", "u1", core.StatusProcessing)
	require.NoError(t, store.CreateDocument(ctx, queued))
	hidden := newChunks("queued", "Refunds are not searchable while processing.")
	hidden[0].Embedding = []float32{1, 0, 0}
	require.NoError(t, store.SaveChunks(ctx, "queued", hidden, storage.DocumentUpdate{}))

	other := newDocument("other", "u2", core.IndexingRetryStatus(1))
	require.NoError(t, store.CreateDocument(ctx, other))
	require.NoError(t, store.SaveChunks(ctx, "other", newChunks("other", "Refunds policy of another user."), storage.DocumentUpdate{}))

	return store
}

func TestFindSimilar(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()

	results, err := store.FindSimilar(ctx, []float32{0.9, 0.1, 0}, 0.5, 10, storage.Scope{})
	require.NoError(t, err)
	require.Len(t, results, 1, "processing documents and low scores are excluded")
	assert.Equal(t, "ready", results[0].Document.ID)
	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, MethodVector, results[0].Method)
	assert.Greater(t, results[0].Score, float32(0.9))
}

func TestFindSimilar_OrderAndLimit(t *testing.T) {
	store := seedIndex(t)

	results, err := store.FindSimilar(context.Background(), []float32{0.6, 0.8, 0}, 0, 1, storage.Scope{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Chunk.Index, "highest similarity first")
}

func TestFindSimilar_InvalidQuery(t *testing.T) {
	store := setupStore(t)
	_, err := store.FindSimilar(context.Background(), nil, 0, 5, storage.Scope{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFullTextSearch(t *testing.T) {
	store := seedIndex(t)
	ctx := context.Background()

	results, err := store.FullTextSearch(ctx, "refunds damage", 10, storage.Scope{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 1, "every term must match")
	assert.Equal(t, 2, results[0].Chunk.Index)
	assert.Equal(t, MethodFullText, results[0].Method)
	assert.Positive(t, results[0].Score)

	results, err = store.FullTextSearch(ctx, "refunds", 10, storage.Scope{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Chunk.Index, "higher term frequency ranks first")

	results, err = store.FullTextSearch(ctx, "refunds", 10, storage.Scope{})
	require.NoError(t, err)
	assert.Len(t, results, 3, "an empty scope includes every uploader")
}

func TestFullTextSearch_StopWordsOnly(t *testing.T) {
	store := seedIndex(t)
	results, err := store.FullTextSearch(context.Background(), "the and of", 10, storage.Scope{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordCandidates(t *testing.T) {
	store := seedIndex(t)

	results, err := store.KeywordCandidates(context.Background(), []string{"shipping"}, 10, storage.Scope{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Chunk.Index, "shortest content first")
	assert.Equal(t, 2, results[1].Chunk.Index)
	assert.Equal(t, MethodKeyword, results[0].Method)

	results, err = store.KeywordCandidates(context.Background(), []string{"zebra"}, 10, storage.Scope{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
