package search

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/fallback"
	"github.com/poiesic/docinx/storage"
	"github.com/poiesic/docinx/tokenize"
)

// Method names reported in Response.Method.
const (
	MethodVector   = "vector_search"
	MethodFullText = "fulltext_search"
	MethodKeyword  = "keyword_search"
	MethodFailed   = "search_failed"
)

// keywordCandidateFactor widens the candidate pool so that a longer chunk
// matching more terms can outrank shorter partial matches.
const keywordCandidateFactor = 5

// Strategy is one way of finding chunks for a query.
type Strategy interface {
	Name() string
	Search(ctx context.Context, q Query) ([]core.SearchResult, error)
}

// EmbeddingChain vectorizes query text. *fallback.EmbeddingChain satisfies it.
type EmbeddingChain interface {
	Execute(ctx context.Context, text string) fallback.Result[[]float32]
}

// VectorStrategy ranks chunks by cosine similarity to the query embedding.
// A query vector produced by a degraded provider carries no meaning, so the
// strategy reports no results for it.
type VectorStrategy struct {
	index    storage.ChunkIndex
	chain    EmbeddingChain
	degraded []string
}

// NewVectorStrategy creates a vector strategy.
func NewVectorStrategy(index storage.ChunkIndex, chain EmbeddingChain, degraded []string) *VectorStrategy {
	return &VectorStrategy{index: index, chain: chain, degraded: degraded}
}

func (s *VectorStrategy) Name() string { return MethodVector }

func (s *VectorStrategy) Search(ctx context.Context, q Query) ([]core.SearchResult, error) {
	res := s.chain.Execute(ctx, q.Text)
	if len(res.Value) == 0 || slices.Contains(s.degraded, res.Provider) {
		return nil, nil
	}
	return s.index.FindSimilar(ctx, res.Value, q.Threshold, q.Limit, storage.Scope{UserID: q.UserID})
}

// FullTextStrategy delegates to the index's relevance-ranked text search.
type FullTextStrategy struct {
	index storage.ChunkIndex
}

// NewFullTextStrategy creates a full-text strategy.
func NewFullTextStrategy(index storage.ChunkIndex) *FullTextStrategy {
	return &FullTextStrategy{index: index}
}

func (s *FullTextStrategy) Name() string { return MethodFullText }

func (s *FullTextStrategy) Search(ctx context.Context, q Query) ([]core.SearchResult, error) {
	return s.index.FullTextSearch(ctx, q.Text, q.Limit, storage.Scope{UserID: q.UserID})
}

// KeywordStrategy matches chunks containing any query keyword and scores
// them by the fraction of keywords present. Ties go to shorter chunks.
type KeywordStrategy struct {
	index storage.ChunkIndex
}

// NewKeywordStrategy creates a keyword strategy.
func NewKeywordStrategy(index storage.ChunkIndex) *KeywordStrategy {
	return &KeywordStrategy{index: index}
}

func (s *KeywordStrategy) Name() string { return MethodKeyword }

func (s *KeywordStrategy) Search(ctx context.Context, q Query) ([]core.SearchResult, error) {
	keywords := Keywords(q.Text)
	if len(keywords) == 0 {
		return nil, nil
	}

	candidates, err := s.index.KeywordCandidates(ctx, keywords, q.Limit*keywordCandidateFactor, storage.Scope{UserID: q.UserID})
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		content := strings.ToLower(candidates[i].Chunk.Content)
		matched := 0
		for _, k := range keywords {
			if strings.Contains(content, k) {
				matched++
			}
		}
		candidates[i].Score = float32(matched) / float32(len(keywords))
	}

	// Candidates arrive shortest first, so a stable sort keeps that order within equal scores.
	slices.SortStableFunc(candidates, func(a, b core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}
	return candidates, nil
}

// Keywords returns the distinct search terms of text. When every word is a
// stop word the words themselves are used.
func Keywords(text string) []string {
	if terms := tokenize.UniqueTerms(text); len(terms) > 0 {
		return terms
	}
	words := tokenize.Words(text)
	slices.Sort(words)
	return slices.Compact(words)
}
