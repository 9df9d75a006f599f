package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docinx/core"
	"github.com/poiesic/docinx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRepository_Sessions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := &core.ChatSession{UserID: "u1", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, store.CreateSession(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &core.ChatSession{UserID: "u1"}
	require.NoError(t, store.CreateSession(ctx, second))
	require.NoError(t, store.CreateSession(ctx, &core.ChatSession{UserID: "u2"}))

	sessions, err := store.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID, "newest first")

	got, err := store.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.CreateSession(ctx, &core.ChatSession{}), core.ErrMissingOwner)
}

func TestChatRepository_Messages(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	session := &core.ChatSession{UserID: "u1"}
	require.NoError(t, store.CreateSession(ctx, session))

	for i := range 8 {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msg := &core.ChatMessage{SessionID: session.ID, Role: role, Content: fmt.Sprintf("message %d", i)}
		if role == core.RoleAssistant {
			msg.Sources = []core.Source{{DocumentID: "d1", ChunkID: "c1", SearchMethod: "keyword_search"}}
			msg.Metadata = map[string]string{"provider_used": "deterministic"}
		}
		require.NoError(t, store.AddMessage(ctx, msg))
	}

	all, err := store.Messages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, all, 8)
	assert.Equal(t, "message 0", all[0].Content)
	assert.Equal(t, "deterministic", all[1].Metadata["provider_used"])
	require.Len(t, all[1].Sources, 1)

	recent, err := store.RecentMessages(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "message 5", recent[0].Content, "oldest of the newest first")
	assert.Equal(t, "message 7", recent[2].Content)

	recent, err = store.RecentMessages(ctx, session.ID, 50)
	require.NoError(t, err)
	assert.Len(t, recent, 8)
}

func TestChatRepository_AddMessageValidation(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.AddMessage(ctx, &core.ChatMessage{SessionID: "missing", Role: core.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.AddMessage(ctx, &core.ChatMessage{SessionID: "s", Role: core.RoleUser})
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
}

func TestChatRepository_SessionsAreIsolated(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := &core.ChatSession{UserID: "u1"}
	b := &core.ChatSession{UserID: "u1"}
	require.NoError(t, store.CreateSession(ctx, a))
	require.NoError(t, store.CreateSession(ctx, b))
	require.NoError(t, store.AddMessage(ctx, &core.ChatMessage{SessionID: a.ID, Role: core.RoleUser, Content: "in a"}))

	msgs, err := store.Messages(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	recent, err := store.RecentMessages(ctx, b.ID, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
