package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Errors should be wrapped in a *ProviderError so callers can tell
	// quota exhaustion apart from transient failures.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Completer generates a chat completion for an ordered list of messages.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete returns the assistant reply for req.
	// An empty reply is reported as ErrEmptyResponse.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AIProvider aggregates the services offered by one remote vendor.
// Either service may be nil when the vendor does not offer it or when it
// is not configured.
type AIProvider interface {
	// Name is the stable provider identifier used for breakers and status.
	Name() string

	// Embedder returns the embedding service, or nil.
	Embedder() Embedder

	// Completer returns the completion service, or nil.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	Close() error
}
