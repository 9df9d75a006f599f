package fallback

import (
	"context"

	"github.com/poiesic/docinx/ai"
)

// Provider is one stage of a Chain.
type Provider[Req, Res any] interface {
	// Name identifies the provider in results, breakers and status reports.
	Name() string
	// Call performs the request.
	Call(ctx context.Context, req Req) (Res, error)
	// IsConfigured reports whether the provider has what it needs to run.
	// Unconfigured providers are skipped without touching their breaker.
	IsConfigured() bool
}

// Terminal is the last stage of a Chain. It must always produce a value.
type Terminal[Req, Res any] interface {
	Name() string
	Call(ctx context.Context, req Req) Res
}

type funcProvider[Req, Res any] struct {
	name       string
	configured bool
	call       func(ctx context.Context, req Req) (Res, error)
}

func (p *funcProvider[Req, Res]) Name() string       { return p.name }
func (p *funcProvider[Req, Res]) IsConfigured() bool { return p.configured }
func (p *funcProvider[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	return p.call(ctx, req)
}

// ProviderFunc adapts fn into a configured Provider.
func ProviderFunc[Req, Res any](name string, fn func(ctx context.Context, req Req) (Res, error)) Provider[Req, Res] {
	return &funcProvider[Req, Res]{name: name, configured: true, call: fn}
}

// EmbeddingProvider adapts an ai.Embedder. A nil embedder yields an
// unconfigured provider, which keeps the provider visible in status reports.
func EmbeddingProvider(name string, e ai.Embedder) Provider[string, []float32] {
	p := &funcProvider[string, []float32]{name: name, configured: e != nil}
	p.call = func(ctx context.Context, text string) ([]float32, error) {
		if e == nil {
			return nil, ai.NewProviderError(name, ai.ErrNotConfigured)
		}
		return e.EmbedText(ctx, text)
	}
	return p
}

// CompletionProvider adapts an ai.Completer. A nil completer yields an
// unconfigured provider.
func CompletionProvider(name string, c ai.Completer) Provider[ai.CompletionRequest, string] {
	p := &funcProvider[ai.CompletionRequest, string]{name: name, configured: c != nil}
	p.call = func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		if c == nil {
			return "", ai.NewProviderError(name, ai.ErrNotConfigured)
		}
		return c.Complete(ctx, req)
	}
	return p
}

type funcTerminal[Req, Res any] struct {
	name string
	call func(ctx context.Context, req Req) Res
}

func (t *funcTerminal[Req, Res]) Name() string                          { return t.name }
func (t *funcTerminal[Req, Res]) Call(ctx context.Context, req Req) Res { return t.call(ctx, req) }

// TerminalFunc adapts fn into a Terminal.
func TerminalFunc[Req, Res any](name string, fn func(ctx context.Context, req Req) Res) Terminal[Req, Res] {
	return &funcTerminal[Req, Res]{name: name, call: fn}
}
