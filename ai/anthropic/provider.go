// Package anthropic provides a Claude completion provider through langchaingo.
//
// Anthropic offers no embedding endpoint, so Provider.Embedder returns nil.
package anthropic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/ai/internal/llmconv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// ProviderName identifies this provider in breakers, caches and responses.
const ProviderName = "anthropic"

// defaultMaxTokens is sent when the request leaves MaxTokens unset,
// since the messages API requires it.
const defaultMaxTokens = 1000

// Completer implements ai.Completer using the Anthropic messages API.
type Completer struct {
	client llms.Model
	logger *slog.Logger
}

// Provider implements ai.AIProvider for Anthropic.
type Provider struct {
	completer *Completer
}

// Option configures the Anthropic client.
type Option func(*[]anthropic.Option)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(url string) Option {
	return func(opts *[]anthropic.Option) {
		*opts = append(*opts, anthropic.WithBaseURL(url))
	}
}

// NewProvider creates a new Anthropic provider.
// It returns ai.ErrNotConfigured when no API key is set.
func NewProvider(config *ai.Config, opts ...Option) (ai.AIProvider, error) {
	completer, err := newCompleter(config, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{completer: completer}, nil
}

// NewCompleter creates a new completer using the provided configuration.
func NewCompleter(config *ai.Config, opts ...Option) (ai.Completer, error) {
	return newCompleter(config, opts...)
}

func newCompleter(config *ai.Config, opts ...Option) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.AnthropicConfigured() {
		return nil, fmt.Errorf("%s: %w", ProviderName, ai.ErrNotConfigured)
	}

	clientOpts := []anthropic.Option{
		anthropic.WithToken(config.AnthropicKey),
		anthropic.WithModel(config.AnthropicModel),
	}
	for _, opt := range opts {
		opt(&clientOpts)
	}

	client, err := anthropic.New(clientOpts...)
	if err != nil {
		return nil, err
	}
	return &Completer{
		client: client,
		logger: slog.Default().With("component", "anthropic-completer"),
	}, nil
}

// Complete sends the prompt to Claude.
// The system message is lifted into the API's system field by langchaingo.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	c.logger.Debug("generating completion", "messages", len(req.Messages), "max_tokens", req.MaxTokens)

	resp, err := c.client.GenerateContent(ctx, llmconv.Messages(req.Messages), llmconv.CallOptions(req)...)
	if err != nil {
		c.logger.Warn("completion failed", "err", err)
		return "", ai.NewProviderError(ProviderName, err)
	}

	var out strings.Builder
	for _, choice := range resp.Choices {
		out.WriteString(choice.Content)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", &ai.ProviderError{Provider: ProviderName, Kind: ai.KindTransient, Err: ai.ErrEmptyResponse}
	}
	return out.String(), nil
}

// Name returns "anthropic".
func (p *Provider) Name() string { return ProviderName }

// Embedder returns nil.
func (p *Provider) Embedder() ai.Embedder { return nil }

// Completer returns the completion service.
func (p *Provider) Completer() ai.Completer { return p.completer }

// Close is a no-op.
func (p *Provider) Close() error { return nil }
