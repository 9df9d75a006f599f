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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/chunking"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/extract"
	"github.com/poiesic/docinx/queue"
	"github.com/poiesic/docinx/storage"
)

const (
	maxRetriesMessage = "Maximum retry attempts exceeded for embedding generation"
	maxPendingMessage = "Maximum pending duration exceeded for embedding generation"
)

// Repository is the persistence a Processor needs.
type Repository interface {
	storage.DocumentRepository
	storage.ChunkRepository
	storage.BlobStore
}

// Result summarizes one processing or retry pass.
type Result struct {
	Status  core.DocumentStatus
	Created int
	Failed  int
	Message string
}

// Processor executes process_document and retry_embeddings tasks.
type Processor struct {
	repo      Repository
	tasks     storage.TaskQueue
	extractor extract.Extractor
	chunker   *chunking.Chunker
	embedder  *chunkEmbedder
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor) error

// WithExtractor replaces the default extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Processor) error {
		if e != nil {
			p.extractor = e
		}
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunking.Chunker) Option {
	return func(p *Processor) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithTaskBreaker sets the breaker consulted before each chunk is embedded.
// Default is a process-local breaker named embedding-pipeline.
func WithTaskBreaker(b *breaker.Breaker) Option {
	return func(p *Processor) error {
		if b != nil {
			p.embedder.breaker = b
		}
		return nil
	}
}

// WithConfig sets the retry limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(p *Processor) error {
		p.cfg = cfg.withDefaults()
		return nil
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewProcessor creates a document processor.
func NewProcessor(repo Repository, tasks storage.TaskQueue, chain EmbeddingChain, opts ...Option) (*Processor, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if tasks == nil {
		return nil, ErrTaskQueueRequired
	}
	if chain == nil {
		return nil, ErrEmbeddingChainRequired
	}

	p := &Processor{
		repo:     repo,
		tasks:    tasks,
		chunker:  chunking.New(),
		embedder: &chunkEmbedder{chain: chain},
		cfg:      DefaultConfig(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.logger = p.logger.With("component", "document-processor")
	if p.extractor == nil {
		p.extractor = extract.New(p.logger)
	}
	if p.embedder.breaker == nil {
		b, err := breaker.New(TaskBreakerName, breaker.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.embedder.breaker = b
	}
	p.embedder.degraded = p.cfg.DegradedProviders
	p.embedder.logger = p.logger
	return p, nil
}

// Config returns the effective limits.
func (p *Processor) Config() Config {
	return p.cfg
}

// ProcessDocument extracts, chunks and embeds the task's document.
// Extraction failures are permanent. Other errors mark the document failed
// and are returned for the queue to retry.
func (p *Processor) ProcessDocument(ctx context.Context, task *core.Task) error {
	logger := p.logger.With("processor", "process_document", "document_id", task.DocumentID, "attempt", task.Attempt)

	doc, err := p.repo.GetDocument(ctx, task.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("document no longer exists")
		return queue.Permanent(err)
	}
	if err != nil {
		return err
	}

	status := core.StatusProcessing
	if task.Attempt > 0 {
		status = core.ProcessingRetryStatus(task.Attempt)
	}
	if _, err := p.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{
		Status:           &status,
		ClearProcessedAt: true,
	}); err != nil {
		return err
	}

	result, err := p.process(ctx, doc)
	if err != nil {
		p.markFailed(ctx, doc.ID, err, logger)
		if errors.Is(err, extract.ErrUnsupportedFormat) || errors.Is(err, extract.ErrExtraction) || errors.Is(err, storage.ErrNotFound) {
			return queue.Permanent(err)
		}
		return err
	}

	logger.Info("document processed", "status", result.Status, "chunks_created", result.Created, "chunks_failed", result.Failed)
	return nil
}

func (p *Processor) process(ctx context.Context, doc *core.Document) (*Result, error) {
	data, err := p.repo.GetBlob(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load file content: %w", err)
	}

	text, err := p.extractor.Extract(ctx, doc.MimeType, data)
	if err != nil {
		return nil, err
	}

	segments := p.chunker.Split(text)
	now := p.now().UTC()
	chunks := make([]*core.Chunk, len(segments))
	result := &Result{}
	for i, seg := range segments {
		chunk := &core.Chunk{
			ID:         core.NewID(),
			DocumentID: doc.ID,
			Index:      seg.Index,
			Content:    seg.Content,
			CharStart:  seg.Start,
			CharEnd:    seg.End,
			CreatedAt:  now,
		}
		vec, provider, outcome := p.embedder.embed(ctx, seg.Content)
		if outcome == embedCreated {
			chunk.Embedding = vec
			chunk.EmbeddingProvider = provider
			result.Created++
		} else {
			result.Failed++
		}
		chunks[i] = chunk
	}
	if err := ctx.Err(); err != nil {
		// Redelivery embeds again; an interrupted pass is not committed.
		return nil, err
	}

	update := storage.DocumentUpdate{ExtractedText: &text}
	var retry *core.Task
	switch {
	case result.Failed == 0:
		result.Status = core.StatusReady
		update.ProcessedAt = &now
	case result.Created > 0:
		result.Status = core.StatusPartial
		result.Message = fmt.Sprintf("Document partially processed: %d chunks ready, %d pending retry", result.Created, result.Failed)
		retry = p.retryTask(doc.ID, now, p.cfg.PartialRetryDelay, 0)
	default:
		result.Status = core.StatusIndexingPendingQuota
		result.Message = fmt.Sprintf("Document uploaded but indexing failed. %d chunks pending retry", result.Failed)
		retry = p.retryTask(doc.ID, now.Add(p.cfg.QuotaRetryDelay), p.cfg.QuotaRetryDelay, 0)
	}
	update.Status = &result.Status
	update.ErrorMessage = &result.Message

	if err := p.repo.SaveChunks(ctx, doc.ID, chunks, update); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}
	if retry != nil {
		if err := p.tasks.Enqueue(ctx, retry); err != nil {
			return nil, fmt.Errorf("schedule embedding retry: %w", err)
		}
	}
	return result, nil
}

// RetryEmbeddings re-embeds the chunks of the task's document that have no
// vector and reschedules itself while chunks remain and retries are left.
func (p *Processor) RetryEmbeddings(ctx context.Context, task *core.Task) error {
	logger := p.logger.With("processor", "retry_embeddings", "document_id", task.DocumentID, "round", task.RetryRound)

	doc, err := p.repo.GetDocument(ctx, task.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("document no longer exists")
		return nil
	}
	if err != nil {
		return err
	}

	missing, err := p.repo.FindChunksMissingEmbedding(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		logger.Info("no chunks need embedding retry")
		return nil
	}

	now := p.now().UTC()
	if now.After(doc.UploadedAt.Add(p.cfg.MaxPendingDuration)) {
		logger.Warn("document pending too long, giving up", "uploaded_at", doc.UploadedAt, "missing", len(missing))
		status := core.StatusEmbeddingFailed
		msg := maxPendingMessage
		_, err := p.repo.UpdateDocument(ctx, doc.ID, storage.DocumentUpdate{Status: &status, ErrorMessage: &msg})
		return err
	}

	stats, err := p.repo.ChunkStats(ctx, doc.ID)
	if err != nil {
		return err
	}

	var embedded []storage.ChunkEmbedding
	failed := 0
	for _, chunk := range missing {
		vec, provider, outcome := p.embedder.embed(ctx, chunk.Content)
		if outcome == embedSkipped {
			logger.Warn("embedding circuit breaker open, stopping retry", "remaining", len(missing)-len(embedded)-failed)
			break
		}
		if outcome == embedFailed {
			failed++
			continue
		}
		embedded = append(embedded, storage.ChunkEmbedding{ChunkID: chunk.ID, Embedding: vec, Provider: provider})
	}

	withVector := stats.Embedded + len(embedded)
	stillMissing := stats.Total - withVector

	var status core.DocumentStatus
	var msg string
	update := storage.DocumentUpdate{}
	var next *core.Task
	switch {
	case stillMissing == 0:
		status = core.StatusReady
		update.ProcessedAt = &now
	case task.RetryRound >= p.cfg.MaxEmbeddingRetries:
		status = core.StatusEmbeddingFailed
		msg = maxRetriesMessage
	default:
		if withVector > 0 {
			status = core.StatusPartial
			msg = fmt.Sprintf("Retry completed: %d successful, %d still pending", len(embedded), stillMissing)
		} else {
			status = core.StatusIndexingPendingQuota
			msg = fmt.Sprintf("Document uploaded but indexing failed. %d chunks pending retry", stillMissing)
		}
		delay := p.nextDelay(task.RetryDelay)
		next = p.retryTask(doc.ID, now.Add(delay), delay, task.RetryRound+1)
	}
	update.Status = &status
	update.ErrorMessage = &msg

	if err := p.repo.UpdateChunkEmbeddings(ctx, doc.ID, embedded, update); err != nil {
		return fmt.Errorf("update chunk embeddings: %w", err)
	}
	if next != nil {
		if err := p.tasks.Enqueue(ctx, next); err != nil {
			return fmt.Errorf("schedule embedding retry: %w", err)
		}
	}

	logger.Info("embedding retry finished", "status", status, "embedded", len(embedded), "failed", failed, "still_missing", stillMissing)
	return nil
}

// nextDelay doubles the previous delay, capped at MaxRetryDelay.
func (p *Processor) nextDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		prev = p.cfg.PartialRetryDelay
	}
	return min(prev*2, p.cfg.MaxRetryDelay)
}

func (p *Processor) retryTask(documentID string, runAt time.Time, delay time.Duration, round int) *core.Task {
	return &core.Task{
		Kind:       core.TaskRetryEmbeddings,
		DocumentID: documentID,
		RunAt:      runAt,
		RetryDelay: delay,
		RetryRound: round,
	}
}

// markFailed records err on the document. It runs even when ctx has expired.
func (p *Processor) markFailed(ctx context.Context, documentID string, cause error, logger *slog.Logger) {
	p.setStatus(ctx, documentID, core.StatusFailed, cause.Error(), logger)
}

func (p *Processor) setStatus(ctx context.Context, documentID string, status core.DocumentStatus, msg string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_, err := p.repo.UpdateDocument(ctx, documentID, storage.DocumentUpdate{Status: &status, ErrorMessage: &msg})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("error updating document status", "status", status, "err", err)
	}
}

// Retrying shows the pending queue retry on the document.
func (p *Processor) Retrying(ctx context.Context, task *core.Task, err error) {
	logger := p.logger.With("document_id", task.DocumentID)
	p.setStatus(ctx, task.DocumentID, core.IndexingRetryStatus(task.Attempt), err.Error(), logger)
}

// Abandoned leaves the document failed with the last error once the queue
// stops retrying process_document.
func (p *Processor) Abandoned(ctx context.Context, task *core.Task, err error) {
	logger := p.logger.With("document_id", task.DocumentID)
	p.setStatus(ctx, task.DocumentID, core.StatusFailed, err.Error(), logger)
}

// RetryAbandoned marks the document embedding_failed once the queue stops
// retrying a retry_embeddings task that kept erroring.
func (p *Processor) RetryAbandoned(ctx context.Context, task *core.Task, _ error) {
	logger := p.logger.With("document_id", task.DocumentID)
	p.setStatus(ctx, task.DocumentID, core.StatusEmbeddingFailed, maxRetriesMessage, logger)
}
