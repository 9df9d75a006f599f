package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/storage"
)

// BlobStore implements storage.BlobStore for BadgerDB.
type BlobStore struct {
	backend *Backend
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a new BlobStore.
func NewBlobStore(backend *Backend) *BlobStore {
	return &BlobStore{backend: backend}
}

// PutBlob stores data under key, replacing any previous value.
func (s *BlobStore) PutBlob(ctx context.Context, key string, data []byte) error {
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeBlobKey(key), data)
	})
}

// GetBlob returns the bytes stored under key.
func (s *BlobStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// DeleteBlob removes key.
func (s *BlobStore) DeleteBlob(ctx context.Context, key string) error {
	return s.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Delete(makeBlobKey(key))
	})
}
