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


// Package docinx assembles the document pipeline: storage, provider
// chains, ingestion workers, search and chat.
package docinx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/ai/anthropic"
	"github.com/poiesic/docinx/ai/gemini"
	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/ai/openai"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/chat"
	"github.com/poiesic/docinx/config"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/queue"
	"github.com/poiesic/docinx/reindex"
	"github.com/poiesic/docinx/retry"
	"github.com/poiesic/docinx/search"
	"github.com/poiesic/docinx/storage"
	"github.com/poiesic/docinx/storage/badger"
	"github.com/poiesic/docinx/storage/postgres"
)

// Backend names reported by Health.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Engine owns every long-lived component of the pipeline.
type Engine struct {
	Store       storage.Store
	Queue       storage.TaskQueue
	Breakers    *breaker.Registry
	Embeddings  *fallback.EmbeddingChain
	Completions *fallback.CompletionChain
	Pipeline    *ingestion.Pipeline
	Worker      *queue.Worker
	Search      *search.Resolver
	Chat        *chat.Orchestrator
	Reindexer   *reindex.Reindexer

	config    *config.Config
	kv        *badger.Store
	backend   string
	providers []ai.AIProvider
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	progress  io.Writer
	inMemory  bool
	providers []ai.AIProvider
	policy    *retry.Policy
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProgress sets where the reindexer reports progress.
// Default discards progress output.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// WithInMemoryStorage keeps every record in memory instead of under DataDir.
func WithInMemoryStorage() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithProviders replaces the remote providers built from the AI config.
// Each provider's embedder joins the embedding chain and its completer the
// completion chain, in order.
func WithProviders(providers ...ai.AIProvider) Option {
	return func(o *options) {
		o.providers = providers
	}
}

// WithRetryPolicy overrides the per-provider retry policy of both chains.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) {
		o.policy = &p
	}
}

// Open builds an Engine from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Engine, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{config: cfg, logger: o.logger.With("component", "engine")}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if err := e.openStorage(ctx, o.inMemory); err != nil {
		return nil, err
	}
	e.Breakers = breaker.NewRegistry(e.kv.Breakers, breaker.WithLogger(o.logger))

	e.providers = o.providers
	if e.providers == nil {
		if e.providers, err = remoteProviders(ctx, &cfg.AI); err != nil {
			return nil, err
		}
	}
	if err := e.buildChains(o); err != nil {
		return nil, err
	}
	if err := e.buildServices(o); err != nil {
		return nil, err
	}

	e.logger.Info("engine ready",
		"backend", e.backend,
		"embedding_providers", len(e.Embeddings.Status().Providers),
		"completion_providers", len(e.Completions.Status().Providers))
	return e, nil
}

func (e *Engine) openStorage(ctx context.Context, inMemory bool) error {
	var err error
	if inMemory {
		e.kv, err = badger.NewMemoryStore()
	} else {
		e.kv, err = badger.Open(e.config.DataDir)
	}
	if err != nil {
		return fmt.Errorf("open badger store: %w", err)
	}
	e.Queue = e.kv.Queue
	e.Store = e.kv
	e.backend = BackendBadger

	if e.config.PostgresDSN != "" {
		pg, err := postgres.Open(ctx, e.config.PostgresDSN)
		if err != nil {
			return err
		}
		e.Store = pg
		e.backend = BackendPostgres
	}
	return nil
}

// remoteProviders creates the vendors in fallback order. Vendors without
// credentials are skipped.
func remoteProviders(ctx context.Context, cfg *ai.Config) ([]ai.AIProvider, error) {
	var providers []ai.AIProvider
	add := func(p ai.AIProvider, err error) error {
		if errors.Is(err, ai.ErrNotConfigured) {
			return nil
		}
		if err != nil {
			return err
		}
		providers = append(providers, p)
		return nil
	}
	if err := add(openai.NewProvider(cfg)); err != nil {
		return nil, err
	}
	if err := add(anthropic.NewProvider(cfg)); err != nil {
		return nil, err
	}
	if err := add(gemini.NewProvider(ctx, cfg)); err != nil {
		return nil, err
	}
	return providers, nil
}

func (e *Engine) buildChains(o *options) error {
	cfg := e.config
	// Each remote service gets its own limiter.
	limiter := func() *fallback.RateLimiter {
		if cfg.ProviderRequestsPerSecond <= 0 {
			return nil
		}
		return fallback.NewRateLimiter(fallback.RateLimitConfig{
			RequestsPerSecond: cfg.ProviderRequestsPerSecond,
			BurstSize:         max(1, int(cfg.ProviderRequestsPerSecond)),
			Backoff:           cfg.QuotaRetryDelay.Std(),
		})
	}

	var embedders []fallback.Provider[string, []float32]
	var completers []fallback.Provider[ai.CompletionRequest, string]
	for _, p := range e.providers {
		if emb := p.Embedder(); emb != nil {
			ep := fallback.EmbeddingProvider(p.Name(), emb)
			if l := limiter(); l != nil {
				ep = fallback.WithRateLimit(ep, l)
			}
			embedders = append(embedders, ep)
		}
		if comp := p.Completer(); comp != nil {
			cp := fallback.CompletionProvider(p.Name(), comp)
			if l := limiter(); l != nil {
				cp = fallback.WithRateLimit(cp, l)
			}
			completers = append(completers, cp)
		}
	}
	if cfg.LocalEmbeddings {
		tfidf := local.NewTFIDFEmbedder(cfg.AI.EmbeddingDimensions)
		embedders = append(embedders, fallback.EmbeddingProvider(tfidf.Name(), tfidf))
	}

	embeddingPolicy := retry.Exponential(cfg.EmbeddingAttempts)
	completionPolicy := retry.Exponential(cfg.CompletionAttempts)
	if o.policy != nil {
		embeddingPolicy, completionPolicy = *o.policy, *o.policy
	}

	var err error
	e.Embeddings, err = fallback.NewEmbeddingChain(cfg.AI.EmbeddingDimensions, embedders,
		fallback.WithPolicy(embeddingPolicy),
		fallback.WithRegistry(e.Breakers),
		fallback.WithBreakerConfig(cfg.EmbeddingBreaker()),
		fallback.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}
	e.Completions, err = fallback.NewCompletionChain(completers,
		fallback.WithPolicy(completionPolicy),
		fallback.WithRegistry(e.Breakers),
		fallback.WithBreakerConfig(cfg.LLMBreaker()),
		fallback.WithLogger(o.logger),
	)
	return err
}

func (e *Engine) buildServices(o *options) error {
	cfg := e.config
	ingest := cfg.Ingestion()

	taskBreaker, err := e.Breakers.Get(ingestion.TaskBreakerName, cfg.EmbeddingBreaker())
	if err != nil {
		return err
	}
	processor, err := ingestion.NewProcessor(e.Store, e.Queue, e.Embeddings,
		ingestion.WithChunker(cfg.Chunker()),
		ingestion.WithTaskBreaker(taskBreaker),
		ingestion.WithConfig(ingest),
		ingestion.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}
	if e.Pipeline, err = ingestion.NewPipeline(e.Store, e.Queue, processor, ingestion.WithPipelineLogger(o.logger)); err != nil {
		return err
	}
	if e.Worker, err = queue.NewWorker(e.Queue, queue.WithConfig(cfg.Queue()), queue.WithLogger(o.logger)); err != nil {
		return err
	}
	if err := e.Pipeline.Register(e.Worker); err != nil {
		return err
	}

	if e.Search, err = search.NewResolver(e.Store, e.Embeddings,
		search.WithThreshold(float32(cfg.SimilarityThreshold)),
		search.WithCacheTTL(cfg.SearchCacheTTL.Std()),
		search.WithDegradedProviders(ingest.DegradedProviders...),
		search.WithLogger(o.logger),
	); err != nil {
		return err
	}
	if e.Chat, err = chat.NewOrchestrator(e.Store, e.Search, e.Completions,
		chat.WithMaxSources(cfg.MaxChunksContext),
		chat.WithMaxContextLength(cfg.MaxContextLength),
		chat.WithLogger(o.logger),
	); err != nil {
		return err
	}

	rcfg := reindex.DefaultConfig()
	rcfg.DegradedProviders = ingest.DegradedProviders
	e.Reindexer, err = reindex.NewReindexer(e.Store, e.Embeddings, rcfg, o.progress)
	return err
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() *config.Config {
	return e.config
}

// Backend names the store holding documents, chunks and chat.
func (e *Engine) Backend() string {
	return e.backend
}

// Close stops the worker pool, releases the caches and closes the providers
// and stores.
func (e *Engine) Close() error {
	var errs []error
	if e.Worker != nil {
		e.Worker.Release()
	}
	if e.Search != nil {
		e.Search.Close()
	}
	if e.Embeddings != nil {
		e.Embeddings.Close()
	}
	if e.Completions != nil {
		e.Completions.Close()
	}
	for _, p := range e.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s provider: %w", p.Name(), err))
		}
	}
	if e.Store != nil && e.backend == BackendPostgres {
		errs = append(errs, e.Store.Close())
	}
	if e.kv != nil {
		errs = append(errs, e.kv.Close())
	}
	if err := errors.Join(errs...); err != nil {
		e.logger.Error("error closing engine", "err", err)
		return err
	}
	return nil
}
