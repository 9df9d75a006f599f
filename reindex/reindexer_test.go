package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/retry"
	"github.com/poiesic/docinx/storage"
	"github.com/poiesic/docinx/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 8

func setupStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newChain embeds through a single "openai" provider backed by fn.
func newChain(t *testing.T, fn func(ctx context.Context, text string) ([]float32, error)) *fallback.EmbeddingChain {
	t.Helper()
	chain, err := fallback.NewEmbeddingChain(testDims,
		[]fallback.Provider[string, []float32]{fallback.ProviderFunc("openai", fn)},
		fallback.WithPolicy(retry.Immediate(1)),
	)
	require.NoError(t, err)
	t.Cleanup(chain.Close)
	return chain
}

func constantEmbedding(context.Context, string) ([]float32, error) {
	v := make([]float32, testDims)
	v[0] = 1
	return v, nil
}

func oldVector() []float32 {
	v := make([]float32, testDims)
	v[testDims-1] = 1
	return v
}

// seedDocument stores a document with n chunks. The first embedded chunks
// carry an old vector from provider "old".
func seedDocument(t *testing.T, store *badger.Store, id, owner string, status core.DocumentStatus, n, embedded int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, &core.Document{
		ID:         id,
		Filename:   id + ".txt",
		UploaderID: owner,
		Status:     status,
		UploadedAt: time.Now().UTC().Add(-time.Hour),
	}))

	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		content := fmt.Sprintf("%s chunk number %d", id, i)
		chunks[i] = &core.Chunk{
			ID:         fmt.Sprintf("%s-%d", id, i),
			DocumentID: id,
			Index:      i,
			Content:    content,
			CharStart:  i * 100,
			CharEnd:    i*100 + len(content),
		}
		if i < embedded {
			chunks[i].Embedding = oldVector()
			chunks[i].EmbeddingProvider = "old"
		}
	}
	require.NoError(t, store.SaveChunks(ctx, id, chunks, storage.DocumentUpdate{}))
}

func TestNewReindexer_Validation(t *testing.T) {
	store := setupStore(t)
	chain := newChain(t, constantEmbedding)

	_, err := NewReindexer(nil, chain, nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewReindexer(store, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbeddingChainRequired)

	r, err := NewReindexer(store, chain, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReindexer_Document(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusEmbeddingFailed, 5, 2)

	r, err := NewReindexer(store, newChain(t, constantEmbedding), &Config{BatchSize: 2}, nil)
	require.NoError(t, err)

	res, err := r.Document(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, &Result{DocumentID: "d1", Total: 5, Succeeded: 5, Status: core.StatusReady}, res)

	chunks, err := store.GetChunks(context.Background(), "d1")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, "openai", c.EmbeddingProvider, "chunk %d", c.Index)
		assert.InDelta(t, 1.0, c.Embedding[0], 1e-6)
	}

	doc, err := store.GetDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReady, doc.Status)
	assert.NotNil(t, doc.ProcessedAt)
}

func TestReindexer_OutageKeepsPreviousEmbeddings(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusPartial, 3, 2)

	chain := newChain(t, func(context.Context, string) ([]float32, error) {
		return nil, errors.New("insufficient_quota")
	})
	r, err := NewReindexer(store, chain, nil, nil)
	require.NoError(t, err)

	res, err := r.Document(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Succeeded)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, core.StatusPartial, res.Status)

	chunks, err := store.GetChunks(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "old", chunks[0].EmbeddingProvider)
	assert.Equal(t, oldVector(), chunks[1].Embedding)
	assert.Nil(t, chunks[2].Embedding)
}

func TestReindexer_FillsMissingAndBecomesReady(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "d1", "u1", core.StatusPartial, 3, 2)

	// The previously embedded first chunk fails; it keeps its old vector.
	chain := newChain(t, func(ctx context.Context, text string) ([]float32, error) {
		if strings.HasSuffix(text, "number 0") {
			return nil, errors.New("connection reset")
		}
		return constantEmbedding(ctx, text)
	})
	r, err := NewReindexer(store, chain, nil, nil)
	require.NoError(t, err)

	res, err := r.Document(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, core.StatusReady, res.Status)

	chunks, err := store.GetChunks(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "old", chunks[0].EmbeddingProvider)
	assert.Equal(t, "openai", chunks[2].EmbeddingProvider)
}

func TestReindexer_DocumentErrors(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "empty", "u1", core.StatusReady, 0, 0)
	r, err := NewReindexer(store, newChain(t, constantEmbedding), nil, nil)
	require.NoError(t, err)

	_, err = r.Document(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = r.Document(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNoChunks)
}

func TestReindexer_All(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "a", "u1", core.StatusReady, 4, 4)
	seedDocument(t, store, "b", "u1", core.IndexingRetryStatus(2), 3, 0)
	seedDocument(t, store, "c", "u1", core.StatusProcessing, 2, 0)
	seedDocument(t, store, "d", "u2", core.StatusReady, 2, 0)

	var calls atomic.Int32
	chain := newChain(t, func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return constantEmbedding(ctx, text)
	})

	var out bytes.Buffer
	r, err := NewReindexer(store, chain, &Config{BatchSize: 2, ReportInterval: 1}, &out)
	require.NoError(t, err)

	results, err := r.All(context.Background(), storage.DocumentFilter{UploaderID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2, "processing documents and other users are skipped")
	assert.EqualValues(t, 7, calls.Load())

	byID := map[string]*Result{}
	for _, res := range results {
		byID[res.DocumentID] = res
	}
	assert.Equal(t, 4, byID["a"].Succeeded)
	assert.Equal(t, core.StatusReady, byID["b"].Status)

	output := out.String()
	assert.Contains(t, output, "Starting reindex of 7 chunks across 2 documents (batch size: 2)")
	assert.Contains(t, output, "7/7 chunks")
	assert.Contains(t, output, "Reindex complete. Re-embedded 7 of 7 chunks")
}

func TestReindexer_AllEmpty(t *testing.T) {
	store := setupStore(t)
	var out bytes.Buffer
	r, err := NewReindexer(store, newChain(t, constantEmbedding), nil, &out)
	require.NoError(t, err)

	results, err := r.All(context.Background(), storage.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, out.String(), "No chunks found to reindex")
}

func TestReindexer_AllStopsOnCancel(t *testing.T) {
	store := setupStore(t)
	seedDocument(t, store, "a", "u1", core.StatusReady, 2, 0)
	seedDocument(t, store, "b", "u1", core.StatusReady, 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	chain := newChain(t, func(c context.Context, text string) ([]float32, error) {
		cancel()
		return constantEmbedding(c, text)
	})
	r, err := NewReindexer(store, chain, &Config{BatchSize: 1}, nil)
	require.NoError(t, err)

	_, err = r.All(ctx, storage.DocumentFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
