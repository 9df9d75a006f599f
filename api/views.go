package api

import (
	"time"

	"github.com/poiesic/docinx/core"
)

type documentView struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Filename     string              `json:"filename"`
	MimeType     string              `json:"mime_type"`
	Size         int64               `json:"size"`
	Status       core.DocumentStatus `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	UploadedAt   time.Time           `json:"uploaded_at"`
	ProcessedAt  *time.Time          `json:"processed_at,omitempty"`
}

func newDocumentView(doc *core.Document) documentView {
	return documentView{
		ID:           doc.ID,
		Title:        doc.Title,
		Filename:     doc.Filename,
		MimeType:     doc.MimeType,
		Size:         doc.Size,
		Status:       doc.Status,
		ErrorMessage: doc.ErrorMessage,
		UploadedAt:   doc.UploadedAt,
		ProcessedAt:  doc.ProcessedAt,
	}
}

type chunkView struct {
	ID                string `json:"id"`
	Index             int    `json:"index"`
	Content           string `json:"content"`
	CharStart         int    `json:"char_start"`
	CharEnd           int    `json:"char_end"`
	Embedded          bool   `json:"embedded"`
	EmbeddingProvider string `json:"embedding_provider,omitempty"`
}

func newChunkView(c *core.Chunk) chunkView {
	return chunkView{
		ID:                c.ID,
		Index:             c.Index,
		Content:           c.Content,
		CharStart:         c.CharStart,
		CharEnd:           c.CharEnd,
		Embedded:          c.HasEmbedding(),
		EmbeddingProvider: c.EmbeddingProvider,
	}
}

type resultView struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkID       string  `json:"chunk_id"`
	Content       string  `json:"content"`
	Score         float32 `json:"score"`
	Method        string  `json:"method"`
}

type searchView struct {
	Query   string       `json:"query"`
	Method  string       `json:"search_method"`
	Results []resultView `json:"results"`
}

type messageView struct {
	ID        string            `json:"id"`
	Role      core.MessageRole  `json:"role"`
	Content   string            `json:"content"`
	Sources   []core.Source     `json:"sources,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func newMessageView(m *core.ChatMessage) messageView {
	return messageView{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Sources:   m.Sources,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}
