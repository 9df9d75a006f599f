package reindex

import (
	"context"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

const (
	// DefaultBatchSize is the default number of chunks committed together
	DefaultBatchSize = 100
)

// ChunkIterator walks the chunks of a document in index order, in batches.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates an iterator. A non-positive batchSize means DefaultBatchSize.
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{repo: repo, batchSize: batchSize}
}

// ForEach calls fn with consecutive batches of the document's chunks.
// It stops at the first error from fn or when ctx is done.
func (it *ChunkIterator) ForEach(ctx context.Context, documentID string, fn func([]*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chunks, err := it.repo.GetChunks(ctx, documentID)
	if err != nil {
		return err
	}

	for i := 0; i < len(chunks); i += it.batchSize {
		end := min(i+it.batchSize, len(chunks))
		if err := fn(chunks[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
