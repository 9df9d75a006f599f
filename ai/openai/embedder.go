package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docinx/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.OpenAIHost),
		openai.WithToken(config.OpenAIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ai.NewProviderError(ProviderName, ai.ErrEmptyInput)
	}
	e.logger.Debug("generating embedding", "length", len(text))

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		e.logger.Warn("failed to generate embedding", "err", err)
		return nil, ai.NewProviderError(ProviderName, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, &ai.ProviderError{Provider: ProviderName, Kind: ai.KindTransient, Err: ai.ErrEmptyResponse}
	}
	return vectors[0], nil
}
