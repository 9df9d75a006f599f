package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/docinx/ai"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration for a provider.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// Backoff is how long the provider is skipped after a quota error.
	// Default: 60 seconds.
	Backoff time.Duration
}

// RateLimiter provides token-bucket rate limiting with a backoff window
// opened by quota errors.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	backoff time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 60 * time.Second
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		backoff: backoff,
		now:     time.Now,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// Inside a backoff window it returns ErrRateLimited immediately, so that
// the chain moves on to the next provider instead of stalling.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if r.now().Before(retryAt) {
		return ErrRateLimited
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError opens a backoff window.
func (r *RateLimiter) RecordRateLimitError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = r.now().Add(r.backoff)
}

// BackingOff reports whether a backoff window is open.
func (r *RateLimiter) BackingOff() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now().Before(r.retryAt)
}

type rateLimited[Req, Res any] struct {
	Provider[Req, Res]
	limiter *RateLimiter
}

// WithRateLimit wraps p so calls respect limiter. Quota errors from p open
// the limiter's backoff window.
func WithRateLimit[Req, Res any](p Provider[Req, Res], limiter *RateLimiter) Provider[Req, Res] {
	return &rateLimited[Req, Res]{Provider: p, limiter: limiter}
}

func (r *rateLimited[Req, Res]) Call(ctx context.Context, req Req) (Res, error) {
	var zero Res
	if err := r.limiter.Wait(ctx); err != nil {
		if err == ErrRateLimited {
			return zero, &ai.ProviderError{Provider: r.Name(), Kind: ai.KindQuota, Err: err}
		}
		return zero, ai.NewProviderError(r.Name(), err)
	}
	res, err := r.Provider.Call(ctx, req)
	if err != nil && ai.IsQuota(err) {
		r.limiter.RecordRateLimitError()
	}
	return res, err
}
