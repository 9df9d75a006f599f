package fallback

import (
	"context"

	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/retry"
	"github.com/poiesic/docinx/vector"
)

// EmbeddingChain vectorizes text.
type EmbeddingChain = Chain[string, []float32]

// NewEmbeddingChain creates the embedding chain over providers with the
// hash_fallback terminal. Every result is conformed to dims and unit length.
// Defaults: 3 attempts per provider, breakers 5 failures / 300s / 3 successes.
func NewEmbeddingChain(dims int, providers []Provider[string, []float32], opts ...Option) (*EmbeddingChain, error) {
	if dims <= 0 {
		return nil, ErrInvalidDimensions
	}

	hash := local.NewHashEmbedder(dims)
	terminal := TerminalFunc(hash.Name(), func(_ context.Context, text string) []float32 {
		return hash.Embed(text)
	})

	opts = append([]Option{WithPolicy(retry.Exponential(3))}, opts...)
	chain, err := New("embedding", providers, terminal, EmbeddingKey, opts...)
	if err != nil {
		return nil, err
	}
	chain.finish = func(v []float32) []float32 {
		return vector.Conform(v, dims)
	}
	chain.lastWord = func(string) []float32 {
		return make([]float32, dims)
	}
	return chain, nil
}

// EmbeddingKey is the content hash of the text.
func EmbeddingKey(text string) string {
	return core.HashContent(text)
}
