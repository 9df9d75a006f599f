package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/ai/internal/llmconv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client llms.Model
	logger *slog.Logger
}

func newCompleter(config *ai.Config) (*Completer, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.OpenAIHost),
		openai.WithToken(config.OpenAIKey),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client: client,
		logger: slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	return newCompleter(config)
}

// Complete sends the prompt to the chat completions endpoint.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	c.logger.Debug("generating completion", "messages", len(req.Messages), "max_tokens", req.MaxTokens)

	resp, err := c.client.GenerateContent(ctx, llmconv.Messages(req.Messages), llmconv.CallOptions(req)...)
	if err != nil {
		c.logger.Warn("completion failed", "err", err)
		return "", ai.NewProviderError(ProviderName, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", &ai.ProviderError{Provider: ProviderName, Kind: ai.KindTransient, Err: ai.ErrEmptyResponse}
	}
	return resp.Choices[0].Content, nil
}
