package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

const uniqueViolation = "23505"

// Store implements storage.Store on a PostgreSQL pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection and creates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	logger := slog.Default().With("component", "postgres")
	logger.Info("connected to postgres")
	return &Store{pool: pool, logger: logger}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

// embeddingValue converts an embedding to a query argument; nil stores NULL.
func embeddingValue(e []float32) any {
	if len(e) == 0 {
		return nil
	}
	return pgvector.NewVector(e)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const documentColumns = `id, title, filename, uploader_id, storage_key, mime_type, size,
	status, error_message, extracted_text, uploaded_at, processed_at`

func scanDocument(row rowScanner) (*core.Document, error) {
	var doc core.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.Filename, &doc.UploaderID, &doc.StorageKey,
		&doc.MimeType, &doc.Size, &doc.Status, &doc.ErrorMessage, &doc.ExtractedText,
		&doc.UploadedAt, &doc.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

const chunkColumns = `id, document_id, chunk_index, content, char_start, char_end,
	embedding, embedding_provider, created_at`

func scanChunk(row rowScanner) (*core.Chunk, error) {
	var (
		chunk core.Chunk
		emb   *pgvector.Vector
	)
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.CharStart, &chunk.CharEnd, &emb, &chunk.EmbeddingProvider, &chunk.CreatedAt)
	if err != nil {
		return nil, err
	}
	if emb != nil {
		chunk.Embedding = emb.Slice()
	}
	return &chunk, nil
}

// scanResult reads resultColumns followed by a score column.
func scanResult(row rowScanner, method string) (core.SearchResult, error) {
	var (
		chunk core.Chunk
		doc   core.Document
		emb   *pgvector.Vector
		score float64
	)
	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.CharStart, &chunk.CharEnd, &emb, &chunk.EmbeddingProvider, &chunk.CreatedAt,
		&doc.ID, &doc.Title, &doc.Filename, &doc.UploaderID, &doc.StorageKey, &doc.MimeType, &doc.Size,
		&doc.Status, &doc.ErrorMessage, &doc.UploadedAt, &doc.ProcessedAt, &score)
	if err != nil {
		return core.SearchResult{}, err
	}
	if emb != nil {
		chunk.Embedding = emb.Slice()
	}
	return core.SearchResult{Chunk: &chunk, Document: &doc, Score: float32(score), Method: method}, nil
}
