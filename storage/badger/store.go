package badger

import (
	"errors"

	"github.com/poiesic/docinx/storage"
)

// Store bundles the BadgerDB repositories sharing one backend.
type Store struct {
	*DocumentRepository
	*ChatRepository
	*BlobStore

	Queue    *TaskQueue
	Breakers *BreakerStore

	backend *Backend
}

var _ storage.Store = (*Store)(nil)

// NewStore creates every repository on backend. Closing the store closes the backend.
func NewStore(backend *Backend) (*Store, error) {
	chat, err := NewChatRepository(backend)
	if err != nil {
		return nil, err
	}
	return &Store{
		DocumentRepository: NewDocumentRepository(backend),
		ChatRepository:     chat,
		BlobStore:          NewBlobStore(backend),
		Queue:              NewTaskQueue(backend),
		Breakers:           NewBreakerStore(backend),
		backend:            backend,
	}, nil
}

// Open opens a Store at path.
func Open(path string) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// Backend returns the underlying backend.
func (s *Store) Backend() *Backend {
	return s.backend
}

// Close releases the repositories and closes the backend.
func (s *Store) Close() error {
	return errors.Join(s.ChatRepository.Close(), s.backend.Close())
}
