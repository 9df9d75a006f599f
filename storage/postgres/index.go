package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// FindSimilar ranks embedded chunks by cosine similarity with query.
func (s *Store) FindSimilar(ctx context.Context, query []float32, minSimilarity float32, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	return s.search(ctx, "vector", `
		SELECT `+resultColumns+`, 1 - (c.embedding <=> $2) AS similarity
		FROM chunks c JOIN documents d ON c.document_id = d.id
		WHERE `+searchableClause+`
		AND c.embedding IS NOT NULL
		AND 1 - (c.embedding <=> $2) >= $3
		ORDER BY c.embedding <=> $2
		LIMIT $4`,
		scope.UserID, pgvector.NewVector(query), minSimilarity, limit)
}

// FullTextSearch ranks chunks matching every query term with ts_rank.
func (s *Store) FullTextSearch(ctx context.Context, query string, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	return s.search(ctx, "fulltext", `
		SELECT `+resultColumns+`,
			ts_rank(to_tsvector('english', c.content), plainto_tsquery('english', $2)) AS rank
		FROM chunks c JOIN documents d ON c.document_id = d.id
		WHERE `+searchableClause+`
		AND to_tsvector('english', c.content) @@ plainto_tsquery('english', $2)
		ORDER BY rank DESC
		LIMIT $3`,
		scope.UserID, query, limit)
}

// KeywordCandidates returns chunks containing any of terms, shortest content first.
func (s *Store) KeywordCandidates(ctx context.Context, terms []string, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if len(terms) == 0 {
		return nil, nil
	}
	return s.search(ctx, "keyword", `
		SELECT `+resultColumns+`, 0::float8 AS score
		FROM chunks c JOIN documents d ON c.document_id = d.id
		WHERE `+searchableClause+`
		AND EXISTS (SELECT 1 FROM unnest($2::text[]) AS t(term) WHERE strpos(lower(c.content), lower(t.term)) > 0)
		ORDER BY char_length(c.content) ASC
		LIMIT $3`,
		scope.UserID, terms, limit)
}

func (s *Store) search(ctx context.Context, method, query string, args ...any) ([]core.SearchResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.SearchResult, error) {
		return scanResult(row, method)
	})
}
