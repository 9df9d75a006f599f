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


package search

import "errors"

var (
	// ErrChunkIndexRequired is returned when a chunk index is not provided.
	ErrChunkIndexRequired = errors.New("chunk index required")

	// ErrEmbeddingChainRequired is returned when an embedding chain is not provided.
	ErrEmbeddingChainRequired = errors.New("embedding chain required")

	// ErrNoStrategies is returned when a resolver is configured without strategies.
	ErrNoStrategies = errors.New("at least one search strategy required")
)
