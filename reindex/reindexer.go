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


package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
)

// Config holds reindex settings
type Config struct {
	// BatchSize is the number of chunks committed together
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// DegradedProviders name embedding stages whose vectors are discarded
	DegradedProviders []string
}

// DefaultConfig returns the default reindex settings.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:         DefaultBatchSize,
		ReportInterval:    100,
		DegradedProviders: []string{local.HashName, fallback.ErrorFallbackProvider},
	}
}

// Repository is the persistence a Reindexer needs.
type Repository interface {
	storage.DocumentRepository
	storage.ChunkRepository
}

// Result summarizes the reindex of one document.
type Result struct {
	DocumentID string              `json:"document_id"`
	Total      int                 `json:"total_chunks"`
	Succeeded  int                 `json:"reindex_success"`
	Failed     int                 `json:"reindex_failed"`
	Status     core.DocumentStatus `json:"status"`
}

// Reindexer re-embeds every chunk of stored documents.
type Reindexer struct {
	repo      Repository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReindexer creates a reindexer. A nil config means DefaultConfig, nil
// DegradedProviders the default list, and a nil progress writer discards
// progress output.
func NewReindexer(repo Repository, chain EmbeddingChain, config *Config, progress io.Writer) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if chain == nil {
		return nil, ErrEmbeddingChainRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DegradedProviders == nil {
		config.DegradedProviders = DefaultConfig().DegradedProviders
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, chain, config.DegradedProviders),
		iterator:  NewChunkIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reindexer"),
	}, nil
}

// Document re-embeds every chunk of one document. When all chunks end up
// embedded the document becomes ready.
func (r *Reindexer) Document(ctx context.Context, documentID string) (*Result, error) {
	doc, err := r.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return r.reindex(ctx, doc, nil)
}

// All re-embeds the chunks of every searchable document matching filter.
// A failing document does not stop the run. Its error is joined into the
// returned error.
func (r *Reindexer) All(ctx context.Context, filter storage.DocumentFilter) ([]*Result, error) {
	docs, err := r.repo.ListDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var (
		targets []*core.Document
		total   int
	)
	for _, doc := range docs {
		if !doc.Status.Searchable() {
			continue
		}
		stats, err := r.repo.ChunkStats(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks of %s: %w", doc.ID, err)
		}
		if stats.Total == 0 {
			continue
		}
		targets = append(targets, doc)
		total += stats.Total
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found to reindex (0 documents)\n")
		return nil, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks across %d documents (batch size: %d)\n",
		total, len(targets), r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	var (
		results   []*Result
		errs      []error
		succeeded int
	)
	for _, doc := range targets {
		res, err := r.reindex(ctx, doc, tracker)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			r.logger.Error("reindex failed", "document", doc.ID, "err", err)
			errs = append(errs, fmt.Errorf("document %s: %w", doc.ID, err))
			continue
		}
		succeeded += res.Succeeded
		results = append(results, res)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Re-embedded %d of %d chunks in %v\n",
		succeeded, total, elapsed.Round(time.Millisecond))

	return results, errors.Join(errs...)
}

func (r *Reindexer) reindex(ctx context.Context, doc *core.Document, tracker *ProgressTracker) (*Result, error) {
	result := &Result{DocumentID: doc.ID, Status: doc.Status}

	err := r.iterator.ForEach(ctx, doc.ID, func(chunks []*core.Chunk) error {
		batch, err := r.processor.Process(ctx, doc.ID, chunks)
		result.Total += len(chunks)
		result.Succeeded += batch.Succeeded
		result.Failed += batch.Failed
		if tracker != nil {
			tracker.Increment(len(chunks))
		}
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if result.Total == 0 {
		return result, ErrNoChunks
	}

	stats, err := r.repo.ChunkStats(ctx, doc.ID)
	if err != nil {
		return result, err
	}
	if stats.Missing() == 0 && doc.Status != core.StatusReady {
		ready := core.StatusReady
		noError := ""
		now := time.Now().UTC()
		if _, err := r.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{
			Status:       &ready,
			ErrorMessage: &noError,
			ProcessedAt:  &now,
		}); err != nil {
			return result, err
		}
		result.Status = ready
	}

	r.logger.Info("document reindexed",
		"document", doc.ID,
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}
