package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// CreateSession stores a new session.
func (s *Store) CreateSession(ctx context.Context, session *core.ChatSession) error {
	if session.UserID == "" {
		return core.ErrMissingOwner
	}
	if session.ID == "" {
		session.ID = core.NewID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO chat_sessions (id, user_id, created_at) VALUES ($1, $2, $3)`,
		session.ID, session.UserID, session.CreatedAt)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateKey
	}
	return err
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*core.ChatSession, error) {
	var session core.ChatSession
	err := s.pool.QueryRow(ctx, `SELECT id, user_id, created_at FROM chat_sessions WHERE id = $1`, id).
		Scan(&session.ID, &session.UserID, &session.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// ListSessions returns the sessions of a user, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]*core.ChatSession, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, created_at FROM chat_sessions
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*core.ChatSession, error) {
		var session core.ChatSession
		err := row.Scan(&session.ID, &session.UserID, &session.CreatedAt)
		return &session, err
	})
}

// AddMessage appends a message to its session.
func (s *Store) AddMessage(ctx context.Context, msg *core.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := core.ValidateMessage(msg); err != nil {
		return err
	}

	sources := msg.Sources
	if sources == nil {
		sources = []core.Source{}
	}
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO chat_messages (id, session_id, role, content, sources, metadata, created_at)
		SELECT $1, id, $3, $4, $5, $6, $7 FROM chat_sessions WHERE id = $2`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, sources, metadata, msg.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const messageColumns = `id, session_id, role, content, sources, metadata, created_at`

func scanMessage(row pgx.CollectableRow) (*core.ChatMessage, error) {
	var msg core.ChatMessage
	err := row.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Sources, &msg.Metadata, &msg.CreatedAt)
	return &msg, err
}

// Messages returns every message of a session, oldest first.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]*core.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMessage)
}

// RecentMessages returns up to limit of the newest messages of a session, oldest first.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*core.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageColumns+` FROM (
			SELECT seq, `+messageColumns+` FROM chat_messages
			WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMessage)
}
