package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// CreateDocument stores a new document.
func (s *Store) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.Title, doc.Filename, doc.UploaderID, doc.StorageKey, doc.MimeType, doc.Size,
		string(doc.Status), doc.ErrorMessage, doc.ExtractedText, doc.UploadedAt, doc.ProcessedAt)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateKey
	}
	return err
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	return doc, notFound(err)
}

// ListDocuments returns matching documents, newest upload first.
// Status filtering happens after the query so retry-numbered statuses match their family.
func (s *Store) ListDocuments(ctx context.Context, filter storage.DocumentFilter) ([]*core.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE ($1 = '' OR uploader_id = $1) ORDER BY uploaded_at DESC`, filter.UploaderID)
	if err != nil {
		return nil, err
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.Document, error) {
		return scanDocument(row)
	})
	if err != nil {
		return nil, err
	}

	matched := docs[:0]
	for _, doc := range docs {
		if filter.Matches(doc) {
			matched = append(matched, doc)
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// UpdateDocument applies update and returns the updated document.
func (s *Store) UpdateDocument(ctx context.Context, id string, update storage.DocumentUpdate) (*core.Document, error) {
	var doc *core.Document
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		doc, err = updateDocument(ctx, tx, id, update)
		return err
	})
	return doc, err
}

func updateDocument(ctx context.Context, tx pgx.Tx, id string, update storage.DocumentUpdate) (*core.Document, error) {
	var (
		sets []string
		args = []any{id}
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Status != nil {
		set("status", string(*update.Status))
	}
	if update.ErrorMessage != nil {
		set("error_message", *update.ErrorMessage)
	}
	if update.ExtractedText != nil {
		set("extracted_text", *update.ExtractedText)
	}
	if update.ClearProcessedAt {
		set("processed_at", (*time.Time)(nil))
	} else if update.ProcessedAt != nil {
		set("processed_at", *update.ProcessedAt)
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	if len(sets) > 0 {
		query = `UPDATE documents SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + documentColumns
	}
	doc, err := scanDocument(tx.QueryRow(ctx, query, args...))
	return doc, notFound(err)
}

// DeleteDocument removes a document; chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SaveChunks replaces the chunks of a document and applies update, in one transaction.
func (s *Store) SaveChunks(ctx context.Context, documentID string, chunks []*core.Chunk, update storage.DocumentUpdate) error {
	if err := core.ValidateChunks(documentID, chunks); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := updateDocument(ctx, tx, documentID, update); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, c := range chunks {
			created := c.CreatedAt
			if created.IsZero() {
				created = time.Now().UTC()
			}
			batch.Queue(`INSERT INTO chunks (`+chunkColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				c.ID, documentID, c.Index, c.Content, c.CharStart, c.CharEnd,
				embeddingValue(c.Embedding), c.EmbeddingProvider, created)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// GetChunks returns the chunks of a document ordered by index.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	return s.queryChunks(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE document_id = $1 ORDER BY chunk_index`, documentID)
}

// FindChunksMissingEmbedding returns the chunks of a document without an embedding.
func (s *Store) FindChunksMissingEmbedding(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	return s.queryChunks(ctx, `SELECT `+chunkColumns+` FROM chunks
		WHERE document_id = $1 AND embedding IS NULL ORDER BY chunk_index`, documentID)
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...any) ([]*core.Chunk, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.Chunk, error) {
		return scanChunk(row)
	})
}

// UpdateChunkEmbeddings stores embeddings and applies update, in one transaction.
func (s *Store) UpdateChunkEmbeddings(ctx context.Context, documentID string, embeddings []storage.ChunkEmbedding, update storage.DocumentUpdate) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := updateDocument(ctx, tx, documentID, update); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, e := range embeddings {
			batch.Queue(`UPDATE chunks SET embedding = $1, embedding_provider = $2
				WHERE id = $3 AND document_id = $4`,
				embeddingValue(e.Embedding), e.Provider, e.ChunkID, documentID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// ChunkStats counts the chunks of a document.
func (s *Store) ChunkStats(ctx context.Context, documentID string) (storage.ChunkStats, error) {
	var stats storage.ChunkStats
	err := s.pool.QueryRow(ctx, `SELECT count(*), count(embedding) FROM chunks WHERE document_id = $1`,
		documentID).Scan(&stats.Total, &stats.Embedded)
	return stats, err
}
