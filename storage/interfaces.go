package storage

import (
	"context"
	"time"

	"github.com/poiesic/docinx/core"
)

// Scope restricts queries to the documents visible to a caller.
// An empty UserID places no restriction.
type Scope struct {
	UserID string
}

// Allows reports whether doc is inside the scope.
func (s Scope) Allows(doc *core.Document) bool {
	return s.UserID == "" || doc.UploaderID == s.UserID
}

// DocumentUpdate is a partial update of a document. Nil fields are left unchanged.
type DocumentUpdate struct {
	Status        *core.DocumentStatus
	ErrorMessage  *string
	ExtractedText *string
	ProcessedAt   *time.Time
	// ClearProcessedAt resets ProcessedAt to nil. It wins over ProcessedAt.
	ClearProcessedAt bool
}

// Apply writes the set fields of u onto doc.
func (u DocumentUpdate) Apply(doc *core.Document) {
	if u.Status != nil {
		doc.Status = *u.Status
	}
	if u.ErrorMessage != nil {
		doc.ErrorMessage = *u.ErrorMessage
	}
	if u.ExtractedText != nil {
		doc.ExtractedText = *u.ExtractedText
	}
	if u.ProcessedAt != nil {
		t := *u.ProcessedAt
		doc.ProcessedAt = &t
	}
	if u.ClearProcessedAt {
		doc.ProcessedAt = nil
	}
}

// DocumentFilter selects documents for ListDocuments.
type DocumentFilter struct {
	UploaderID string              // Empty matches every uploader
	Statuses   []core.DocumentStatus // Empty matches every status; compared by Base()
	Limit      int                 // Zero means no limit
}

// Matches reports whether doc passes the filter.
func (f DocumentFilter) Matches(doc *core.Document) bool {
	if f.UploaderID != "" && doc.UploaderID != f.UploaderID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if doc.Status == s || doc.Status.Base() == s.Base() {
			return true
		}
	}
	return false
}

// ChunkEmbedding is the outcome of embedding one chunk.
type ChunkEmbedding struct {
	ChunkID   string
	Embedding []float32
	Provider  string
}

// ChunkStats summarizes the chunks of one document.
type ChunkStats struct {
	Total    int
	Embedded int
}

// Missing returns the number of chunks without an embedding.
func (s ChunkStats) Missing() int {
	return s.Total - s.Embedded
}

// DocumentRepository stores documents.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// CreateDocument stores a new document.
	// Returns ErrDuplicateKey if a document with the same ID exists.
	CreateDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns matching documents, newest upload first.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*core.Document, error)

	// UpdateDocument applies update and returns the updated document.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateDocument(ctx context.Context, id string, update DocumentUpdate) (*core.Document, error)

	// DeleteDocument removes a document and all of its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error
}

// ChunkRepository stores the chunks of documents.
type ChunkRepository interface {
	// SaveChunks replaces every chunk of the document with chunks and applies
	// update to the document, in one transaction.
	SaveChunks(ctx context.Context, documentID string, chunks []*core.Chunk, update DocumentUpdate) error

	// GetChunks returns the chunks of a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]*core.Chunk, error)

	// FindChunksMissingEmbedding returns the chunks of a document that have
	// no embedding, ordered by index.
	FindChunksMissingEmbedding(ctx context.Context, documentID string) ([]*core.Chunk, error)

	// UpdateChunkEmbeddings stores embeddings and applies update to the
	// document, in one transaction. Unknown chunk IDs are ignored.
	UpdateChunkEmbeddings(ctx context.Context, documentID string, embeddings []ChunkEmbedding, update DocumentUpdate) error

	// ChunkStats counts the chunks of a document.
	ChunkStats(ctx context.Context, documentID string) (ChunkStats, error)
}

// ChunkIndex searches chunks of searchable documents inside a scope.
type ChunkIndex interface {
	// FindSimilar returns chunks whose embedding has cosine similarity
	// >= minSimilarity with vector, highest first.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, scope Scope) ([]core.SearchResult, error)

	// FullTextSearch returns chunks matching every term of query, ranked by relevance.
	FullTextSearch(ctx context.Context, query string, limit int, scope Scope) ([]core.SearchResult, error)

	// KeywordCandidates returns chunks containing at least one of terms,
	// shortest content first. Scores are left to the caller.
	KeywordCandidates(ctx context.Context, terms []string, limit int, scope Scope) ([]core.SearchResult, error)
}

// ChatRepository stores chat sessions and their messages.
type ChatRepository interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session *core.ChatSession) error

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.ChatSession, error)

	// ListSessions returns the sessions of a user, newest first.
	ListSessions(ctx context.Context, userID string) ([]*core.ChatSession, error)

	// AddMessage appends a message to its session.
	// Returns ErrNotFound if the session doesn't exist.
	AddMessage(ctx context.Context, msg *core.ChatMessage) error

	// Messages returns every message of a session, oldest first.
	Messages(ctx context.Context, sessionID string) ([]*core.ChatMessage, error)

	// RecentMessages returns up to limit of the newest messages of a session, oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error)
}

// BlobStore stores raw uploaded bytes.
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte) error
	// GetBlob returns ErrNotFound if key doesn't exist.
	GetBlob(ctx context.Context, key string) ([]byte, error)
	// DeleteBlob removes key. Deleting a missing key is not an error.
	DeleteBlob(ctx context.Context, key string) error
}

// QueueStats reports the depth of the queue for one task kind.
type QueueStats struct {
	Due       int `json:"due"`
	Scheduled int `json:"scheduled"`
	Leased    int `json:"leased"`
}

// TaskQueue is a durable at-least-once task queue.
type TaskQueue interface {
	// Enqueue stores a task. A zero RunAt means now. A missing ID is generated.
	Enqueue(ctx context.Context, task *core.Task) error

	// Lease returns up to max tasks due at now and hides them until now+lease.
	// A leased task that is neither acked nor rescheduled becomes due again.
	Lease(ctx context.Context, now time.Time, lease time.Duration, max int) ([]*core.Task, error)

	// Ack removes a finished task.
	Ack(ctx context.Context, taskID string) error

	// Reschedule stores task with its new RunAt, Attempt and LastError.
	Reschedule(ctx context.Context, task *core.Task) error

	// Tasks returns every stored task ordered by RunAt.
	Tasks(ctx context.Context) ([]*core.Task, error)

	// Stats returns queue depths per task kind as seen at now.
	Stats(ctx context.Context, now time.Time) (map[core.TaskKind]QueueStats, error)
}

// Store bundles the repositories a backend provides.
type Store interface {
	DocumentRepository
	ChunkRepository
	ChunkIndex
	ChatRepository
	BlobStore
	Close() error
}
