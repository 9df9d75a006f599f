package badger

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// DocumentRepository implements storage.DocumentRepository,
// storage.ChunkRepository and storage.ChunkIndex for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var (
	_ storage.DocumentRepository = (*DocumentRepository)(nil)
	_ storage.ChunkRepository    = (*DocumentRepository)(nil)
	_ storage.ChunkIndex         = (*DocumentRepository)(nil)
)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// CreateDocument stores a new document.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document) error {
	if err := core.ValidateDocument(doc); err != nil {
		return err
	}
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeValue(tx, key, doc)
	})
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		doc, err = readValue[core.Document](tx, makeDocumentKey(id))
		return err
	})
	return doc, err
}

// ListDocuments returns matching documents, newest upload first.
func (r *DocumentRepository) ListDocuments(ctx context.Context, filter storage.DocumentFilter) ([]*core.Document, error) {
	var docs []*core.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(documentPrefix), func(_ []byte, doc *core.Document) bool {
			if filter.Matches(doc) {
				docs = append(docs, doc)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b *core.Document) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs, nil
}

// UpdateDocument applies update and returns the updated document.
func (r *DocumentRepository) UpdateDocument(ctx context.Context, id string, update storage.DocumentUpdate) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		var err error
		doc, err = updateDocument(tx, id, update)
		return err
	})
	return doc, err
}

func updateDocument(tx *badger.Txn, id string, update storage.DocumentUpdate) (*core.Document, error) {
	key := makeDocumentKey(id)
	doc, err := readValue[core.Document](tx, key)
	if err != nil {
		return nil, err
	}
	update.Apply(doc)
	return doc, writeValue(tx, key, doc)
}

// DeleteDocument removes a document and all of its chunks.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}
		return tx.Delete(key)
	})
}

func deleteChunks(tx *badger.Txn, documentID string) error {
	for _, key := range prefixKeys(tx, makeChunkPrefix(documentID)) {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// SaveChunks replaces the chunks of a document and applies update, in one transaction.
func (r *DocumentRepository) SaveChunks(ctx context.Context, documentID string, chunks []*core.Chunk, update storage.DocumentUpdate) error {
	if err := core.ValidateChunks(documentID, chunks); err != nil {
		return err
	}
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := updateDocument(tx, documentID, update); err != nil {
			return err
		}
		if err := deleteChunks(tx, documentID); err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := writeValue(tx, makeChunkKey(documentID, chunk.Index), chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChunks returns the chunks of a document ordered by index.
func (r *DocumentRepository) GetChunks(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	return r.chunks(documentID, func(*core.Chunk) bool { return true })
}

// FindChunksMissingEmbedding returns the chunks of a document without an embedding.
func (r *DocumentRepository) FindChunksMissingEmbedding(ctx context.Context, documentID string) ([]*core.Chunk, error) {
	return r.chunks(documentID, func(c *core.Chunk) bool { return !c.HasEmbedding() })
}

func (r *DocumentRepository) chunks(documentID string, keep func(*core.Chunk) bool) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChunkPrefix(documentID), func(_ []byte, c *core.Chunk) bool {
			if keep(c) {
				chunks = append(chunks, c)
			}
			return true
		})
	})
	return chunks, err
}

// UpdateChunkEmbeddings stores embeddings and applies update, in one transaction.
func (r *DocumentRepository) UpdateChunkEmbeddings(ctx context.Context, documentID string, embeddings []storage.ChunkEmbedding, update storage.DocumentUpdate) error {
	byID := make(map[string]storage.ChunkEmbedding, len(embeddings))
	for _, e := range embeddings {
		byID[e.ChunkID] = e
	}

	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := updateDocument(tx, documentID, update); err != nil {
			return err
		}

		var changed []*core.Chunk
		err := scanPrefix(tx, makeChunkPrefix(documentID), func(_ []byte, c *core.Chunk) bool {
			if e, ok := byID[c.ID]; ok {
				c.Embedding = e.Embedding
				c.EmbeddingProvider = e.Provider
				changed = append(changed, c)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, c := range changed {
			if err := writeValue(tx, makeChunkKey(documentID, c.Index), c); err != nil {
				return err
			}
		}
		return nil
	})
}

// ChunkStats counts the chunks of a document.
func (r *DocumentRepository) ChunkStats(ctx context.Context, documentID string) (storage.ChunkStats, error) {
	var stats storage.ChunkStats
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeChunkPrefix(documentID), func(_ []byte, c *core.Chunk) bool {
			stats.Total++
			if c.HasEmbedding() {
				stats.Embedded++
			}
			return true
		})
	})
	return stats, err
}
