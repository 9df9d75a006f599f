package fallback

import "errors"

var (
	// ErrTerminalRequired is returned when a chain is created without a terminal.
	ErrTerminalRequired = errors.New("terminal provider required")

	// ErrKeyFuncRequired is returned when a chain is created without a key function.
	ErrKeyFuncRequired = errors.New("cache key function required")

	// ErrInvalidDimensions is returned when an embedding chain has no positive dimension.
	ErrInvalidDimensions = errors.New("embedding dimensions must be positive")

	// ErrRateLimited is returned by a rate-limited provider inside its backoff window.
	ErrRateLimited = errors.New("rate limited: provider is backing off")
)
