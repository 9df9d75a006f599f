// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/cache"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
)

const (
	// DefaultLimit is used when a query does not set one.
	DefaultLimit = 10

	// DefaultThreshold is the minimum cosine similarity of a vector result.
	DefaultThreshold float32 = 0.1

	// DefaultCacheTTL is how long a non-empty response is reused.
	DefaultCacheTTL = 60 * time.Second
)

// Query is one search request.
type Query struct {
	Text      string
	UserID    string  // Restricts results to this uploader's documents when set
	Limit     int     // Zero means DefaultLimit
	Threshold float32 // Zero means the resolver's threshold
}

// Response is the result of a search.
type Response struct {
	Results []core.SearchResult
	// Method names the strategy that produced Results, or search_failed.
	Method string
}

// Resolver runs search strategies in order until one finds results.
type Resolver struct {
	strategies []Strategy
	cache      *cache.Cache[Response]
	cacheTTL   time.Duration
	cacheSize  int64
	threshold  float32
	degraded   []string
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithStrategies replaces the default vector, full-text and keyword strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) error {
		if len(strategies) == 0 {
			return ErrNoStrategies
		}
		r.strategies = strategies
		return nil
	}
}

// WithThreshold sets the default minimum vector similarity.
func WithThreshold(threshold float32) Option {
	return func(r *Resolver) error {
		r.threshold = threshold
		return nil
	}
}

// WithCacheTTL sets how long responses are cached. Zero or negative disables expiry.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) error {
		r.cacheTTL = ttl
		return nil
	}
}

// WithCacheSize bounds the number of cached responses.
func WithCacheSize(n int64) Option {
	return func(r *Resolver) error {
		if n <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", n)
		}
		r.cacheSize = n
		return nil
	}
}

// WithDegradedProviders names embedding stages whose query vectors are not
// used for vector search. Default: hash_fallback and error_fallback.
func WithDegradedProviders(names ...string) Option {
	return func(r *Resolver) error {
		r.degraded = names
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewResolver creates a resolver over index. chain embeds queries for
// vector search.
func NewResolver(index storage.ChunkIndex, chain EmbeddingChain, opts ...Option) (*Resolver, error) {
	if index == nil {
		return nil, ErrChunkIndexRequired
	}
	if chain == nil {
		return nil, ErrEmbeddingChainRequired
	}

	r := &Resolver{
		cacheTTL:  DefaultCacheTTL,
		cacheSize: 1000,
		threshold: DefaultThreshold,
		degraded:  []string{local.HashName, fallback.ErrorFallbackProvider},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.strategies == nil {
		r.strategies = []Strategy{
			NewVectorStrategy(index, chain, r.degraded),
			NewFullTextStrategy(index),
			NewKeywordStrategy(index),
		}
	}
	r.logger = r.logger.With("component", "search-resolver")
	if r.cacheTTL < 0 {
		r.cacheTTL = 0
	}

	c, err := cache.New(cache.Config[Response]{
		NumCounters: r.cacheSize * 10,
		MaxCost:     r.cacheSize,
		TTL:         r.cacheTTL,
	})
	if err != nil {
		return nil, err
	}
	r.cache = c
	return r, nil
}

// Search finds chunks for q. It never fails: when every strategy errors the
// response is empty with Method search_failed.
func (r *Resolver) Search(ctx context.Context, q Query) Response {
	return r.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor is Search with progress callbacks.
func (r *Resolver) SearchWithMonitor(ctx context.Context, q Query, monitor Monitor) Response {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Threshold == 0 {
		q.Threshold = r.threshold
	}
	monitor.Start(q)

	if strings.TrimSpace(q.Text) == "" {
		resp := Response{Method: MethodKeyword}
		monitor.Finish(resp, false)
		return resp
	}

	key := cacheKey(q)
	if resp, ok := r.cache.Get(key); ok {
		r.logger.Debug("search results served from cache", "method", resp.Method)
		monitor.Finish(resp, true)
		return resp
	}

	var lastErr error
	for _, s := range r.strategies {
		results, err := s.Search(ctx, q)
		lastErr = err
		if err != nil {
			r.logger.Warn("search strategy failed", "strategy", s.Name(), "err", err)
			monitor.StrategyFailed(s.Name(), err)
			continue
		}
		if len(results) == 0 {
			monitor.StrategyEmpty(s.Name())
			continue
		}

		resp := Response{Results: results, Method: s.Name()}
		r.cache.Put(key, resp)
		r.logger.Info("search completed", "method", resp.Method, "results", len(results))
		monitor.Finish(resp, false)
		return resp
	}

	method := r.strategies[len(r.strategies)-1].Name()
	if lastErr != nil {
		r.logger.Error("all search methods failed", "err", lastErr)
		method = MethodFailed
	}
	resp := Response{Method: method}
	monitor.Finish(resp, false)
	return resp
}

// ClearCache drops every cached response.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// CacheSize returns the number of cached responses.
func (r *Resolver) CacheSize() int {
	return r.cache.Len()
}

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

func cacheKey(q Query) string {
	return core.HashContent(fmt.Sprintf("%s\x00%s\x00%d\x00%g", q.Text, q.UserID, q.Limit, q.Threshold))
}
