package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/storage"
)

// BreakerStore implements breaker.Store on BadgerDB so every worker sharing
// the database sees the same breaker state.
type BreakerStore struct {
	backend *Backend
}

var _ breaker.Store = (*BreakerStore)(nil)

// NewBreakerStore creates a new BreakerStore.
func NewBreakerStore(backend *Backend) *BreakerStore {
	return &BreakerStore{backend: backend}
}

// Load returns the stored state of name, or its initial state.
func (s *BreakerStore) Load(name string) (breaker.State, error) {
	var state breaker.State
	err := s.backend.View(func(tx *badger.Txn) error {
		stored, err := readValue[breaker.State](tx, makeBreakerKey(name))
		if errors.Is(err, storage.ErrNotFound) {
			state = breaker.Initial(name)
			return nil
		}
		if err != nil {
			return err
		}
		state = *stored
		return nil
	})
	return state, err
}

// CompareAndSwap stores next if the stored version equals expected.
// A concurrent writer committing first makes the swap fail without error.
func (s *BreakerStore) CompareAndSwap(name string, expected uint64, next breaker.State) (bool, error) {
	swapped := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBreakerKey(name)
		var version uint64
		stored, err := readValue[breaker.State](tx, key)
		switch {
		case err == nil:
			version = stored.Version
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		if version != expected {
			return nil
		}
		if err := writeValue(tx, key, &next); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		swapped = true
		return nil
	}, true)
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	return swapped, err
}

// States returns every stored breaker state.
func (s *BreakerStore) States(ctx context.Context) ([]breaker.State, error) {
	var states []breaker.State
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(breakerStatePrefix), func(_ []byte, st *breaker.State) bool {
			states = append(states, *st)
			return true
		})
	})
	return states, err
}
