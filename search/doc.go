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


// Package search resolves queries against stored chunks with ordered fallback.
//
// The Resolver runs its strategies in order and returns the first non-empty
// result set together with the strategy's name:
//   - vector_search: cosine similarity between the query embedding and chunk embeddings
//   - fulltext_search: relevance-ranked full-text matching of every query term
//   - keyword_search: substring containment scored by the fraction of terms present
//
// A strategy that errors is skipped. When every strategy fails the resolver
// answers with an empty set instead of an error. Results are cached for a
// short time per query, scope, limit and threshold.
package search
