package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a new random identifier for documents, chunks, sessions and tasks.
func NewID() string {
	return uuid.NewString()
}

// HashContent returns a stable hex digest of text using BLAKE2b-256.
// Identical content always produces the identical digest.
func HashContent(text string) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Document is an uploaded file and its processing state.
type Document struct {
	ID            string
	Title         string
	Filename      string
	UploaderID    string
	StorageKey    string // Key of the raw bytes in the blob store
	MimeType      string
	Size          int64
	Status        DocumentStatus
	ErrorMessage  string
	ExtractedText string
	UploadedAt    time.Time
	ProcessedAt   *time.Time
}

// Chunk is a bounded slice of a document's extracted text.
// CharStart and CharEnd are rune offsets forming the half-open span [CharStart, CharEnd).
type Chunk struct {
	ID                string
	DocumentID        string
	Index             int
	Content           string
	CharStart         int
	CharEnd           int
	Embedding         []float32 // nil until successfully embedded
	EmbeddingProvider string    // Provider that produced Embedding
	CreatedAt         time.Time
}

// HasEmbedding reports whether the chunk carries a vector.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatSession groups an ordered sequence of messages.
type ChatSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// ChatMessage is a single turn in a chat session.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      MessageRole
	Content   string
	Sources   []Source          // Populated on assistant messages
	Metadata  map[string]string // e.g. "provider_used", "search_method"
	CreatedAt time.Time
}

// Source references the chunk an assistant answer drew on.
type Source struct {
	DocumentID       string  `json:"document_id"`
	DocumentTitle    string  `json:"document_title"`
	DocumentFilename string  `json:"document_filename,omitempty"`
	ChunkID          string  `json:"chunk_id"`
	ChunkExcerpt     string  `json:"chunk_excerpt"`
	Similarity       float32 `json:"similarity"`
	SearchMethod     string  `json:"search_method"`
}

// SearchResult is a ranked chunk together with its parent document.
type SearchResult struct {
	Chunk    *Chunk
	Document *Document
	Score    float32
	Method   string // Per-result strategy tag: "vector", "fulltext" or "keyword"
}

// TaskKind names a unit of work understood by the task queue.
type TaskKind string

const (
	// TaskProcessDocument extracts, chunks and embeds one document.
	TaskProcessDocument TaskKind = "process_document"
	// TaskRetryEmbeddings re-attempts chunks whose embedding is missing.
	TaskRetryEmbeddings TaskKind = "retry_embeddings"
)

// Task is a durable unit of work.
type Task struct {
	ID         string
	Kind       TaskKind
	DocumentID string
	Attempt    int           // Queue-level retries performed so far
	RetryRound int           // Retry-scheduler rounds performed so far
	RetryDelay time.Duration // Delay used to schedule this round
	RunAt      time.Time
	LeaseUntil time.Time
	LastError  string
	CreatedAt  time.Time
}
