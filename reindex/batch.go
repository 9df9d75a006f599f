package reindex

import (
	"context"
	"fmt"
	"slices"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
)

// EmbeddingChain vectorizes chunk text. *fallback.EmbeddingChain satisfies it.
type EmbeddingChain interface {
	Execute(ctx context.Context, text string) fallback.Result[[]float32]
}

// BatchResult counts the outcome of one batch.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// BatchProcessor re-embeds a batch of chunks and commits the new vectors.
type BatchProcessor struct {
	repo     storage.ChunkRepository
	chain    EmbeddingChain
	degraded []string
}

// NewBatchProcessor creates a batch processor. Vectors from providers named
// in degraded are not stored, so a chunk keeps its previous embedding.
func NewBatchProcessor(repo storage.ChunkRepository, chain EmbeddingChain, degraded []string) *BatchProcessor {
	return &BatchProcessor{repo: repo, chain: chain, degraded: degraded}
}

// Process embeds chunks of documentID one by one and commits the successes together.
func (bp *BatchProcessor) Process(ctx context.Context, documentID string, chunks []*core.Chunk) (BatchResult, error) {
	var result BatchResult
	if len(chunks) == 0 {
		return result, nil
	}

	embeddings := make([]storage.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		res := bp.chain.Execute(ctx, chunk.Content)
		if len(res.Value) == 0 || slices.Contains(bp.degraded, res.Provider) {
			result.Failed++
			continue
		}
		embeddings = append(embeddings, storage.ChunkEmbedding{ChunkID: chunk.ID, Embedding: res.Value, Provider: res.Provider})
		result.Succeeded++
	}
	if len(embeddings) == 0 {
		return result, nil
	}

	if err := bp.repo.UpdateChunkEmbeddings(ctx, documentID, embeddings, storage.DocumentUpdate{}); err != nil {
		return BatchResult{Failed: len(chunks)}, fmt.Errorf("failed to update chunks: %w", err)
	}
	return result, nil
}
