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


// Package storage provides the storage abstraction layer for docinx.
//
// This package defines repository interfaces that decouple storage implementation
// from the ingestion, search and chat logic. Two backends implement them:
// storage/badger, an embedded store that also provides the durable task queue
// and shared circuit breaker state, and storage/postgres, which ranks chunks
// with pgvector and PostgreSQL full-text search.
//
// # Architecture
//
//   - DocumentRepository: documents and their processing status
//   - ChunkRepository: chunks, replaced and updated atomically with the document status
//   - ChunkIndex: vector, full-text and keyword candidate search
//   - ChatRepository: chat sessions and messages
//   - BlobStore: raw uploaded bytes
//   - TaskQueue: durable at-least-once tasks
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
