package ingestion

import (
	"context"
	"log/slog"
	"slices"

	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/fallback"
)

// EmbeddingChain vectorizes chunk text. *fallback.EmbeddingChain satisfies it.
type EmbeddingChain interface {
	Execute(ctx context.Context, text string) fallback.Result[[]float32]
}

// embedOutcome is the result of embedding one chunk.
type embedOutcome int

const (
	embedCreated embedOutcome = iota
	embedFailed
	embedSkipped // task breaker open, nothing attempted
)

// chunkEmbedder runs the embedding chain behind the task-level breaker.
type chunkEmbedder struct {
	chain    EmbeddingChain
	breaker  *breaker.Breaker
	degraded []string
	logger   *slog.Logger
}

// embed returns the vector and provider for text. Vectors from degraded
// providers are discarded and count as failures.
func (e *chunkEmbedder) embed(ctx context.Context, text string) ([]float32, string, embedOutcome) {
	if !e.breaker.CanExecute() {
		return nil, "", embedSkipped
	}

	res := e.chain.Execute(ctx, text)
	if ctx.Err() != nil {
		e.breaker.Release()
		return nil, res.Provider, embedFailed
	}
	if len(res.Value) == 0 || slices.Contains(e.degraded, res.Provider) {
		e.breaker.OnFailure()
		e.logger.Debug("embedding degraded, chunk left for retry", "provider", res.Provider)
		return nil, res.Provider, embedFailed
	}

	e.breaker.OnSuccess()
	return res.Value, res.Provider, embedCreated
}
