package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// ChatRepository implements storage.ChatRepository for BadgerDB.
type ChatRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.ChatRepository = (*ChatRepository)(nil)

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(backend *Backend) (*ChatRepository, error) {
	seq, err := backend.GetSequence(messageSeq)
	if err != nil {
		return nil, err
	}

	return &ChatRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the message sequence.
func (r *ChatRepository) Close() error {
	return r.seq.Release()
}

// CreateSession stores a new session.
func (r *ChatRepository) CreateSession(ctx context.Context, session *core.ChatSession) error {
	if session.UserID == "" {
		return core.ErrMissingOwner
	}
	if session.ID == "" {
		session.ID = core.NewID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeSessionKey(session.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := writeValue(tx, key, session); err != nil {
			return err
		}
		return tx.Set(makeUserSessionKey(session.UserID, session.CreatedAt, session.ID), []byte(session.ID))
	})
}

// GetSession retrieves a session by ID.
func (r *ChatRepository) GetSession(ctx context.Context, id string) (*core.ChatSession, error) {
	var session *core.ChatSession
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		session, err = readValue[core.ChatSession](tx, makeSessionKey(id))
		return err
	})
	return session, err
}

// ListSessions returns the sessions of a user, newest first.
func (r *ChatRepository) ListSessions(ctx context.Context, userID string) ([]*core.ChatSession, error) {
	var sessions []*core.ChatSession
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, key := range prefixKeys(tx, makeUserSessionPrefix(userID)) {
			item, err := tx.Get(key)
			if err != nil {
				return err
			}
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			session, err := readValue[core.ChatSession](tx, makeSessionKey(string(id)))
			if err != nil {
				// Skip dangling index entries
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(sessions)
	return sessions, nil
}

// AddMessage appends a message to its session.
func (r *ChatRepository) AddMessage(ctx context.Context, msg *core.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := core.ValidateMessage(msg); err != nil {
		return err
	}

	seq, err := r.seq.Next()
	if err != nil {
		return err
	}

	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		if _, err := tx.Get(makeSessionKey(msg.SessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return writeValue(tx, makeMessageKey(msg.SessionID, seq), msg)
	})
}

// Messages returns every message of a session, oldest first.
func (r *ChatRepository) Messages(ctx context.Context, sessionID string) ([]*core.ChatMessage, error) {
	var messages []*core.ChatMessage
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeMessagePrefix(sessionID), func(_ []byte, m *core.ChatMessage) bool {
			messages = append(messages, m)
			return true
		})
	})
	return messages, err
}

// RecentMessages returns up to limit of the newest messages of a session, oldest first.
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var messages []*core.ChatMessage
	err := r.backend.View(func(tx *badger.Txn) error {
		prefix := makeMessagePrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key under prefix
		seekKey := append(slices.Clone(prefix), 0xFF)
		for iter.Seek(seekKey); iter.Valid() && len(messages) < limit; iter.Next() {
			var msg *core.ChatMessage
			err := iter.Item().Value(func(val []byte) error {
				var err error
				msg, err = storage.Unmarshal[core.ChatMessage](val)
				return err
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
