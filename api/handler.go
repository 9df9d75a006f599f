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


package api

import (
	"context"
	"log/slog"

	"github.com/poiesic/docinx/chat"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/ingestion"
	"github.com/poiesic/docinx/reindex"
	"github.com/poiesic/docinx/search"
	"github.com/poiesic/docinx/storage"
)

// DefaultMaxUploadSize bounds the size of a multipart upload body.
const DefaultMaxUploadSize int64 = 64 << 20

// Documents reads documents and their chunks.
type Documents interface {
	GetDocument(ctx context.Context, id string) (*core.Document, error)
	ListDocuments(ctx context.Context, filter storage.DocumentFilter) ([]*core.Document, error)
	GetChunks(ctx context.Context, documentID string) ([]*core.Chunk, error)
}

// Pipeline accepts uploads and schedules document work.
type Pipeline interface {
	Upload(ctx context.Context, req ingestion.UploadRequest) (*core.Document, error)
	Reindex(ctx context.Context, documentID string) error
	Delete(ctx context.Context, documentID string) error
}

// Reindexer re-embeds every chunk of a document synchronously.
type Reindexer interface {
	Document(ctx context.Context, documentID string) (*reindex.Result, error)
}

// Searcher runs a search.
type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// Chat answers messages and lists sessions.
type Chat interface {
	Send(ctx context.Context, req chat.Request) *chat.Response
	Sessions(ctx context.Context, userID string) ([]chat.SessionSummary, error)
	History(ctx context.Context, sessionID, userID string) ([]*core.ChatMessage, error)
}

// HealthFunc reports the state of the running system.
type HealthFunc func(ctx context.Context) (any, error)

// Services are the collaborators of a Handler. Reindexer and Health are optional.
type Services struct {
	Documents Documents
	Pipeline  Pipeline
	Reindexer Reindexer
	Searcher  Searcher
	Chat      Chat
	Health    HealthFunc
}

// Handler serves the HTTP API.
type Handler struct {
	Services
	maxUpload int64
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxUploadSize bounds the request body of uploads.
func WithMaxUploadSize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(s Services, opts ...Option) (*Handler, error) {
	switch {
	case s.Documents == nil:
		return nil, ErrDocumentsRequired
	case s.Pipeline == nil:
		return nil, ErrPipelineRequired
	case s.Searcher == nil:
		return nil, ErrSearcherRequired
	case s.Chat == nil:
		return nil, ErrChatRequired
	}
	h := &Handler{
		Services:  s,
		maxUpload: DefaultMaxUploadSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "http-api")
	return h, nil
}
