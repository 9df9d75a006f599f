package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
)

// previewLength bounds SessionSummary.LatestMessage, in runes.
const previewLength = 100

// SessionSummary describes one session in a listing.
type SessionSummary struct {
	ID            string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	LatestMessage string    `json:"latest_message"`
	MessageCount  int       `json:"message_count"`
}

// Sessions lists the sessions of userID, newest first.
func (o *Orchestrator) Sessions(ctx context.Context, userID string) ([]SessionSummary, error) {
	sessions, err := o.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		messages, err := o.repo.Messages(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("list messages of session %s: %w", s.ID, err)
		}
		summary := SessionSummary{ID: s.ID, CreatedAt: s.CreatedAt, MessageCount: len(messages)}
		if n := len(messages); n > 0 {
			summary.LatestMessage = excerpt(messages[n-1].Content, previewLength)
		}
		out = append(out, summary)
	}
	return out, nil
}

// History returns every message of a session owned by userID, oldest first.
// A session owned by another user is reported as storage.ErrNotFound.
func (o *Orchestrator) History(ctx context.Context, sessionID, userID string) ([]*core.ChatMessage, error) {
	session, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && session.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return o.repo.Messages(ctx, sessionID)
}
