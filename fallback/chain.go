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


package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/cache"
	"github.com/poiesic/docinx/retry"
)

const (
	// CacheProvider tags results served from the cache.
	CacheProvider = "cache"
	// ErrorFallbackProvider tags results produced after the terminal itself failed.
	ErrorFallbackProvider = "error_fallback"
)

// Result is the outcome of Chain.Execute.
type Result[Res any] struct {
	Value Res
	// Provider names the stage that produced Value. It is never empty.
	Provider string
}

// KeyFunc derives the cache key of a request.
type KeyFunc[Req any] func(Req) string

// ProviderStatus reports one provider of a chain.
type ProviderStatus struct {
	Name       string        `json:"name"`
	Configured bool          `json:"configured"`
	Breaker    breaker.State `json:"circuit_breaker"`
}

// ChainStatus reports a chain's providers and cache.
type ChainStatus struct {
	Name      string           `json:"name"`
	Providers []ProviderStatus `json:"providers"`
	Terminal  string           `json:"terminal"`
	CacheSize int              `json:"cache_size"`
}

// Chain tries providers in order and falls back to a terminal that never fails.
// Successful provider results are cached; terminal results are not, so a
// recovered provider is used again on the next call.
type Chain[Req, Res any] struct {
	name      string
	providers []Provider[Req, Res]
	breakers  []*breaker.Breaker
	terminal  Terminal[Req, Res]
	cache     *cache.Cache[Res]
	key       KeyFunc[Req]
	policy    retry.Policy
	finish    func(Res) Res
	lastWord  func(Req) Res
	logger    *slog.Logger
}

// New creates a chain. name prefixes breaker names, so chains sharing a
// registry keep separate breakers for the same vendor.
func New[Req, Res any](name string, providers []Provider[Req, Res], terminal Terminal[Req, Res], key KeyFunc[Req], opts ...Option) (*Chain[Req, Res], error) {
	if terminal == nil {
		return nil, ErrTerminalRequired
	}
	if key == nil {
		return nil, ErrKeyFuncRequired
	}

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	c := &Chain[Req, Res]{
		name:      name,
		providers: providers,
		terminal:  terminal,
		key:       key,
		policy:    o.policy,
		logger:    o.logger.With("component", "fallback-chain", "chain", name),
	}

	if o.registry == nil {
		o.registry = breaker.NewRegistry(nil)
	}
	for _, p := range providers {
		b, err := o.registry.Get(BreakerName(name, p.Name()), o.breakerConfig)
		if err != nil {
			return nil, fmt.Errorf("breaker for %s: %w", p.Name(), err)
		}
		c.breakers = append(c.breakers, b)
	}

	resultCache, err := cache.New(cache.Config[Res]{
		NumCounters: o.cacheEntries * 10,
		MaxCost:     o.cacheEntries,
		TTL:         o.cacheTTL,
	})
	if err != nil {
		return nil, err
	}
	c.cache = resultCache
	return c, nil
}

// BreakerName returns the registry name of a provider's breaker in a chain.
func BreakerName(chain, provider string) string {
	return chain + "." + provider
}

// Name returns the chain's name.
func (c *Chain[Req, Res]) Name() string {
	return c.name
}

// Execute runs req through the cache, the providers and finally the terminal.
// It never fails.
func (c *Chain[Req, Res]) Execute(ctx context.Context, req Req) Result[Res] {
	key := c.key(req)
	if v, ok := c.cache.Get(key); ok {
		c.logger.Debug("served from cache")
		return Result[Res]{Value: v, Provider: CacheProvider}
	}

	for i, p := range c.providers {
		if !p.IsConfigured() {
			continue
		}
		b := c.breakers[i]
		if !b.CanExecute() {
			c.logger.Warn("circuit breaker open, skipping provider", "provider", p.Name())
			continue
		}

		var out Res
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			v, err := p.Call(ctx, req)
			if err != nil {
				return err
			}
			out = v
			return nil
		}, ai.IsRetryable)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; that says nothing about the provider.
			b.Release()
			c.logger.Debug("context done, skipping to terminal", "provider", p.Name(), "err", ctx.Err())
			break
		}
		if err != nil {
			b.OnFailure()
			c.logger.Warn("provider failed", "provider", p.Name(), "kind", ai.Classify(err), "err", err)
			continue
		}

		b.OnSuccess()
		if c.finish != nil {
			out = c.finish(out)
		}
		c.cache.Put(key, out)
		return Result[Res]{Value: out, Provider: p.Name()}
	}

	return c.runTerminal(ctx, req)
}

func (c *Chain[Req, Res]) runTerminal(ctx context.Context, req Req) (res Result[Res]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("terminal provider failed", "provider", c.terminal.Name(), "panic", r)
			var v Res
			if c.lastWord != nil {
				v = c.lastWord(req)
			}
			res = Result[Res]{Value: v, Provider: ErrorFallbackProvider}
		}
	}()

	c.logger.Info("all providers exhausted, using terminal", "provider", c.terminal.Name())
	v := c.terminal.Call(ctx, req)
	if c.finish != nil {
		v = c.finish(v)
	}
	return Result[Res]{Value: v, Provider: c.terminal.Name()}
}

// ClearCache drops every cached result.
func (c *Chain[Req, Res]) ClearCache() {
	c.cache.Clear()
	c.logger.Info("cache cleared")
}

// Status reports the providers, their breakers and the cache size.
func (c *Chain[Req, Res]) Status() ChainStatus {
	status := ChainStatus{
		Name:      c.name,
		Terminal:  c.terminal.Name(),
		CacheSize: c.cache.Len(),
	}
	for i, p := range c.providers {
		status.Providers = append(status.Providers, ProviderStatus{
			Name:       p.Name(),
			Configured: p.IsConfigured(),
			Breaker:    c.breakers[i].Snapshot(),
		})
	}
	return status
}

// Close releases the cache.
func (c *Chain[Req, Res]) Close() {
	c.cache.Close()
}
