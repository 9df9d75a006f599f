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


package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/search"
	"github.com/poiesic/docinx/storage"
)

const (
	// DefaultMaxSources is the number of chunks retrieved per question.
	DefaultMaxSources = 5

	// DefaultMaxContextLength bounds the prompt, in characters.
	DefaultMaxContextLength = 4000

	// DefaultHistoryLimit is the number of earlier messages loaded per question.
	DefaultHistoryLimit = 10

	// DefaultMaxTokens is used when a request does not set MaxTokens.
	DefaultMaxTokens = 1000
)

const (
	// ErrorHandlerProvider is reported when the reply is the apology.
	ErrorHandlerProvider = "error_handler"

	// FailedSearchMethod is reported when the question never reached search.
	FailedSearchMethod = "failed"

	// ApologyReply is sent when a message could not be processed.
	ApologyReply = "I apologize, but I encountered an issue processing your message. " +
		"Please try again, and if the problem persists, check that your documents " +
		"are properly uploaded and indexed."

	// UnavailableReply is sent when even the apology could not be stored.
	UnavailableReply = "I'm experiencing technical difficulties. Please try again later."
)

// Metadata keys stored on assistant messages.
const (
	MetaProviderUsed = "provider_used"
	MetaSearchMethod = "search_method"
	MetaError        = "error"
)

// Searcher retrieves chunks for a question. *search.Resolver satisfies it.
type Searcher interface {
	Search(ctx context.Context, q search.Query) search.Response
}

// CompletionChain answers prompts. *fallback.CompletionChain satisfies it.
type CompletionChain interface {
	Execute(ctx context.Context, req ai.CompletionRequest) fallback.Result[string]
}

// Request is one user message.
type Request struct {
	UserID    string
	SessionID string // Empty starts a new session
	Message   string
	MaxTokens int // Zero means DefaultMaxTokens
}

// Metadata describes how a reply was produced.
type Metadata struct {
	ProviderUsed       string `json:"provider_used"`
	SearchMethod       string `json:"search_method"`
	SourcesFound       int    `json:"sources_found"`
	ConversationLength int    `json:"conversation_length"`
}

// Response is the outcome of Send.
type Response struct {
	Success   bool          `json:"success"`
	SessionID string        `json:"session_id"`
	Reply     string        `json:"response"`
	Sources   []core.Source `json:"sources"`
	Metadata  Metadata      `json:"metadata"`
	Error     string        `json:"error,omitempty"`
}

// Orchestrator answers chat messages with retrieval-augmented generation.
type Orchestrator struct {
	repo             storage.ChatRepository
	searcher         Searcher
	completions      CompletionChain
	maxSources       int
	maxContextLength int
	historyLimit     int
	now              func() time.Time
	logger           *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxSources sets the number of chunks retrieved per question.
func WithMaxSources(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSources = n
		}
	}
}

// WithMaxContextLength bounds the prompt sent to the model, in characters.
func WithMaxContextLength(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxContextLength = n
		}
	}
}

// WithHistoryLimit sets how many earlier messages are loaded per question.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.historyLimit = n
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(repo storage.ChatRepository, searcher Searcher, completions CompletionChain, opts ...Option) (*Orchestrator, error) {
	if repo == nil {
		return nil, ErrChatRepositoryRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if completions == nil {
		return nil, ErrCompletionChainRequired
	}

	o := &Orchestrator{
		repo:             repo,
		searcher:         searcher,
		completions:      completions,
		maxSources:       DefaultMaxSources,
		maxContextLength: DefaultMaxContextLength,
		historyLimit:     DefaultHistoryLimit,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "chat-orchestrator")
	return o, nil
}

// Validate reports whether req can be sent.
func Validate(req Request) error {
	if strings.TrimSpace(req.UserID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Send answers req. It never fails: on internal errors the reply is an
// apology, Success is false and Error describes the cause.
func (o *Orchestrator) Send(ctx context.Context, req Request) (resp *Response) {
	if req.SessionID == "" {
		req.SessionID = core.NewID()
	}
	defer func() {
		if r := recover(); r != nil {
			resp = o.fail(ctx, req, fmt.Errorf("chat panic: %v", r))
		}
	}()

	if err := Validate(req); err != nil {
		return o.fail(ctx, req, err)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	answered, err := o.answer(ctx, req)
	if err != nil {
		return o.fail(ctx, req, err)
	}
	return answered
}

func (o *Orchestrator) answer(ctx context.Context, req Request) (*Response, error) {
	session, err := o.session(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}
	req.SessionID = session.ID

	question := &core.ChatMessage{
		ID:        core.NewID(),
		SessionID: req.SessionID,
		Role:      core.RoleUser,
		Content:   req.Message,
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.AddMessage(ctx, question); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	found := o.searcher.Search(ctx, search.Query{Text: req.Message, UserID: req.UserID, Limit: o.maxSources})

	history, err := o.history(ctx, req.SessionID, question.ID)
	if err != nil {
		return nil, err
	}

	sources := make([]core.Source, 0, len(found.Results))
	entries := make([]contextEntry, 0, len(found.Results))
	retrieved := make([]string, 0, len(found.Results))
	for _, r := range found.Results {
		src := newSource(r)
		sources = append(sources, src)
		entries = append(entries, contextEntry{title: src.DocumentTitle, excerpt: src.ChunkExcerpt})
		retrieved = append(retrieved, r.Chunk.Content)
	}

	prompt := buildPrompt(found.Method, req.Message, history, entries, o.maxContextLength)
	completion := o.completions.Execute(ctx, ai.CompletionRequest{
		Messages:      prompt,
		MaxTokens:     req.MaxTokens,
		RetrievedDocs: retrieved,
	})

	reply := &core.ChatMessage{
		ID:        core.NewID(),
		SessionID: req.SessionID,
		Role:      core.RoleAssistant,
		Content:   completion.Value,
		Sources:   sources,
		Metadata: map[string]string{
			MetaProviderUsed: completion.Provider,
			MetaSearchMethod: found.Method,
		},
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.AddMessage(ctx, reply); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}

	o.logger.Info("chat reply generated",
		"session", req.SessionID,
		"provider", completion.Provider,
		"search_method", found.Method,
		"sources", len(sources))

	return &Response{
		Success:   true,
		SessionID: req.SessionID,
		Reply:     completion.Value,
		Sources:   sources,
		Metadata: Metadata{
			ProviderUsed:       completion.Provider,
			SearchMethod:       found.Method,
			SourcesFound:       len(found.Results),
			ConversationLength: len(history) + 2,
		},
	}, nil
}

// session returns the session with id, creating it for userID when missing.
func (o *Orchestrator) session(ctx context.Context, id, userID string) (*core.ChatSession, error) {
	session, err := o.repo.GetSession(ctx, id)
	switch {
	case err == nil && session.UserID == userID:
		return session, nil
	case err == nil:
		// Another user's session is never appended to.
		o.logger.Warn("session owned by another user, starting a new one", "session", id)
		id = core.NewID()
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("load session: %w", err)
	}

	session = &core.ChatSession{ID: id, UserID: userID, CreatedAt: o.now().UTC()}
	if err := o.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// history returns up to historyLimit earlier messages, oldest first,
// leaving out the message with skipID.
func (o *Orchestrator) history(ctx context.Context, sessionID, skipID string) ([]ai.Message, error) {
	if o.historyLimit == 0 {
		return nil, nil
	}
	recent, err := o.repo.RecentMessages(ctx, sessionID, o.historyLimit+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]ai.Message, 0, len(recent))
	for _, m := range recent {
		if m.ID == skipID {
			continue
		}
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	if len(out) > o.historyLimit {
		out = out[len(out)-o.historyLimit:]
	}
	return out, nil
}

// fail stores and returns the apology for err.
func (o *Orchestrator) fail(ctx context.Context, req Request, err error) *Response {
	o.logger.Error("chat processing failed", "session", req.SessionID, "err", err)

	resp := &Response{
		SessionID: req.SessionID,
		Reply:     ApologyReply,
		Sources:   []core.Source{},
		Metadata:  Metadata{ProviderUsed: ErrorHandlerProvider, SearchMethod: FailedSearchMethod},
		Error:     err.Error(),
	}
	if errors.Is(err, ErrUserRequired) || errors.Is(err, ErrEmptyMessage) {
		return resp
	}

	if serr := o.storeApology(ctx, req, err); serr != nil {
		o.logger.Error("failed to store apology", "session", req.SessionID, "err", serr)
		resp.Reply = UnavailableReply
	}
	return resp
}

// storeApology records the apology in the session, creating it if needed.
// It runs even when ctx is already done.
func (o *Orchestrator) storeApology(ctx context.Context, req Request, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := o.session(ctx, req.SessionID, req.UserID); err != nil {
		return err
	}
	return o.repo.AddMessage(ctx, &core.ChatMessage{
		ID:        core.NewID(),
		SessionID: req.SessionID,
		Role:      core.RoleAssistant,
		Content:   ApologyReply,
		Metadata: map[string]string{
			MetaProviderUsed: ErrorHandlerProvider,
			MetaSearchMethod: FailedSearchMethod,
			MetaError:        cause.Error(),
		},
		CreatedAt: o.now().UTC(),
	})
}

func newSource(r core.SearchResult) core.Source {
	src := core.Source{
		ChunkExcerpt: excerpt(r.Chunk.Content, excerptLength),
		ChunkID:      r.Chunk.ID,
		DocumentID:   r.Chunk.DocumentID,
		Similarity:   r.Score,
		SearchMethod: r.Method,
	}
	if r.Document != nil {
		src.DocumentTitle = r.Document.Title
		src.DocumentFilename = r.Document.Filename
	}
	return src
}
