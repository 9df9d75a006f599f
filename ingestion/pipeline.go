package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/extract"
	"github.com/poiesic/docinx/queue"
	"github.com/poiesic/docinx/storage"
)

// UploadRequest describes one uploaded file.
type UploadRequest struct {
	Filename   string
	Title      string // Defaults to the filename without its extension
	MimeType   string // Derived from the filename extension when empty
	UploaderID string
	Data       []byte
}

// Pipeline accepts uploads and schedules their processing.
type Pipeline struct {
	repo      Repository
	tasks     storage.TaskQueue
	processor *Processor
	supports  func(mimeType string) bool
	now       func() time.Time
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline) error

// WithPipelineLogger sets a custom logger.
// Default is slog.Default().
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithPipelineClock replaces time.Now. Used by tests.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// NewPipeline creates a pipeline that stores uploads in repo and schedules
// them on tasks for processor.
func NewPipeline(repo Repository, tasks storage.TaskQueue, processor *Processor, opts ...PipelineOption) (*Pipeline, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if tasks == nil {
		return nil, ErrTaskQueueRequired
	}
	if processor == nil {
		return nil, ErrProcessorRequired
	}

	p := &Pipeline{
		repo:      repo,
		tasks:     tasks,
		processor: processor,
		supports:  func(string) bool { return true },
		now:       time.Now,
		logger:    slog.Default(),
	}
	if s, ok := processor.extractor.(interface{ Supports(string) bool }); ok {
		p.supports = s.Supports
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion-pipeline")
	return p, nil
}

// Register binds the processor's handlers to w.
func (p *Pipeline) Register(w *queue.Worker) error {
	if err := w.Register(core.TaskProcessDocument, p.processor.ProcessDocument, queue.Hooks{
		Retrying:  p.processor.Retrying,
		Abandoned: p.processor.Abandoned,
	}); err != nil {
		return err
	}
	return w.Register(core.TaskRetryEmbeddings, p.processor.RetryEmbeddings, queue.Hooks{
		Abandoned: p.processor.RetryAbandoned,
	})
}

// Upload validates and stores a file, creates its queued document and
// schedules processing.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) (*core.Document, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if limit := p.processor.cfg.MaxFileSize; int64(len(req.Data)) > limit {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, len(req.Data), limit)
	}

	filename := filepath.Base(req.Filename)
	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = extract.MimeTypeForFilename(filename)
	}
	if mimeType == "" || !p.supports(mimeType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, mimeType)
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	doc := &core.Document{
		ID:         core.NewID(),
		Title:      title,
		Filename:   filename,
		UploaderID: req.UploaderID,
		MimeType:   mimeType,
		Size:       int64(len(req.Data)),
		Status:     core.StatusQueued,
		UploadedAt: p.now().UTC(),
	}
	doc.StorageKey = "documents/" + doc.ID
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := p.repo.PutBlob(ctx, doc.StorageKey, req.Data); err != nil {
		return nil, fmt.Errorf("store file content: %w", err)
	}
	if err := p.repo.CreateDocument(ctx, doc); err != nil {
		return nil, errors.Join(err, p.repo.DeleteBlob(ctx, doc.StorageKey))
	}
	if err := p.tasks.Enqueue(ctx, &core.Task{
		Kind:       core.TaskProcessDocument,
		DocumentID: doc.ID,
		RunAt:      doc.UploadedAt,
	}); err != nil {
		return nil, fmt.Errorf("schedule processing: %w", err)
	}

	p.logger.Info("document uploaded", "document_id", doc.ID, "filename", filename, "mime_type", mimeType, "size", doc.Size)
	return doc, nil
}

// Reindex schedules a retry_embeddings pass for the document's chunks that
// have no vector.
func (p *Pipeline) Reindex(ctx context.Context, documentID string) error {
	if _, err := p.repo.GetDocument(ctx, documentID); err != nil {
		return err
	}
	return p.tasks.Enqueue(ctx, &core.Task{
		Kind:       core.TaskRetryEmbeddings,
		DocumentID: documentID,
		RunAt:      p.now().UTC(),
		RetryDelay: p.processor.cfg.PartialRetryDelay,
	})
}

// Reprocess schedules a full process_document pass, replacing the
// document's chunks.
func (p *Pipeline) Reprocess(ctx context.Context, documentID string) error {
	status := core.StatusQueued
	if _, err := p.repo.UpdateDocument(ctx, documentID, storage.DocumentUpdate{Status: &status}); err != nil {
		return err
	}
	return p.tasks.Enqueue(ctx, &core.Task{
		Kind:       core.TaskProcessDocument,
		DocumentID: documentID,
		RunAt:      p.now().UTC(),
	})
}

// Delete removes the document, its chunks and its file content.
// Tasks still queued for it find nothing and finish.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	doc, err := p.repo.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := p.repo.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := p.repo.DeleteBlob(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete file content: %w", err)
	}
	p.logger.Info("document deleted", "document_id", documentID)
	return nil
}
