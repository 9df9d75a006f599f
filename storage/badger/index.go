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


package badger

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
	"github.com/poiesic/docinx/tokenize"
	"github.com/poiesic/docinx/vector"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Per-result method tags.
const (
	MethodVector   = "vector"
	MethodFullText = "fulltext"
	MethodKeyword  = "keyword"
)

// scanSearchable calls fn for every chunk whose document is searchable and in scope.
func (r *DocumentRepository) scanSearchable(ctx context.Context, scope storage.Scope, fn func(c *core.Chunk, doc *core.Document)) error {
	return r.backend.View(func(tx *badger.Txn) error {
		docs := make(map[string]*core.Document)
		var lookupErr error
		err := scanPrefix(tx, []byte(chunkPrefix), func(_ []byte, c *core.Chunk) bool {
			if ctx.Err() != nil {
				lookupErr = ctx.Err()
				return false
			}
			doc, seen := docs[c.DocumentID]
			if !seen {
				var err error
				doc, err = readValue[core.Document](tx, makeDocumentKey(c.DocumentID))
				if err != nil && !errors.Is(err, storage.ErrNotFound) {
					lookupErr = err
					return false
				}
				if doc != nil && (!doc.Status.Searchable() || !scope.Allows(doc)) {
					doc = nil
				}
				docs[c.DocumentID] = doc
			}
			if doc != nil {
				fn(c, doc)
			}
			return true
		})
		if err != nil {
			return err
		}
		return lookupErr
	})
}

// FindSimilar ranks embedded chunks by cosine similarity with query.
func (r *DocumentRepository) FindSimilar(ctx context.Context, query []float32, minSimilarity float32, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []core.SearchResult
	err := r.scanSearchable(ctx, scope, func(c *core.Chunk, doc *core.Document) {
		if !c.HasEmbedding() {
			return
		}
		similarity := vector.Cosine(query, c.Embedding)
		if similarity >= minSimilarity {
			results = append(results, core.SearchResult{Chunk: c, Document: doc, Score: similarity, Method: MethodVector})
		}
	})
	if err != nil {
		return nil, err
	}
	return topResults(results, limit), nil
}

// FullTextSearch ranks chunks containing every query term with BM25.
func (r *DocumentRepository) FullTextSearch(ctx context.Context, query string, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	terms := tokenize.UniqueTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type candidate struct {
		chunk *core.Chunk
		doc   *core.Document
		tf    map[string]int
		dl    int
	}

	var (
		candidates []candidate
		corpus     int
		totalLen   int
		df         = make(map[string]int, len(terms))
	)
	err := r.scanSearchable(ctx, scope, func(c *core.Chunk, doc *core.Document) {
		words := tokenize.Terms(c.Content)
		corpus++
		totalLen += len(words)

		tf := make(map[string]int, len(terms))
		for _, w := range words {
			if slices.Contains(terms, w) {
				tf[w]++
			}
		}
		for term := range tf {
			df[term]++
		}
		if len(tf) == len(terms) {
			candidates = append(candidates, candidate{chunk: c, doc: doc, tf: tf, dl: len(words)})
		}
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	avgdl := float64(totalLen) / float64(corpus)
	results := make([]core.SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		var score float64
		for _, term := range terms {
			n := float64(df[term])
			idf := math.Log(1 + (float64(corpus)-n+0.5)/(n+0.5))
			tf := float64(cand.tf[term])
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(cand.dl)/avgdl))
		}
		results = append(results, core.SearchResult{Chunk: cand.chunk, Document: cand.doc, Score: float32(score), Method: MethodFullText})
	}
	return topResults(results, limit), nil
}

// KeywordCandidates returns chunks containing any of terms, shortest content first.
func (r *DocumentRepository) KeywordCandidates(ctx context.Context, terms []string, limit int, scope storage.Scope) ([]core.SearchResult, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var results []core.SearchResult
	err := r.scanSearchable(ctx, scope, func(c *core.Chunk, doc *core.Document) {
		content := strings.ToLower(c.Content)
		for _, term := range terms {
			if strings.Contains(content, strings.ToLower(term)) {
				results = append(results, core.SearchResult{Chunk: c, Document: doc, Method: MethodKeyword})
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		return cmp.Compare(len([]rune(a.Chunk.Content)), len([]rune(b.Chunk.Content)))
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// topResults sorts by score descending and keeps at most limit results.
func topResults(results []core.SearchResult, limit int) []core.SearchResult {
	slices.SortStableFunc(results, func(a, b core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
