package fallback

import (
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/retry"
)

type options struct {
	policy        retry.Policy
	registry      *breaker.Registry
	breakerConfig breaker.Config
	cacheEntries  int64
	cacheTTL      time.Duration
	logger        *slog.Logger
}

func defaultOptions() *options {
	return &options{
		policy:        retry.Exponential(3),
		breakerConfig: breaker.DefaultConfig(),
		cacheEntries:  10_000,
		logger:        slog.Default(),
	}
}

// Option configures a Chain.
type Option func(*options) error

// WithPolicy sets the per-provider retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(o *options) error {
		if p.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		o.policy = p
		return nil
	}
}

// WithRegistry sets the registry breakers are taken from.
// Defaults to a private registry backed by memory.
func WithRegistry(r *breaker.Registry) Option {
	return func(o *options) error {
		o.registry = r
		return nil
	}
}

// WithBreakerConfig sets the thresholds of the chain's provider breakers.
func WithBreakerConfig(cfg breaker.Config) Option {
	return func(o *options) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.breakerConfig = cfg
		return nil
	}
}

// WithCacheSize bounds the result cache to about n entries.
func WithCacheSize(n int64) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.New("cache size must be positive")
		}
		o.cacheEntries = n
		return nil
	}
}

// WithCacheTTL expires cached results after ttl.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) error {
		o.cacheTTL = ttl
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}
