package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider(context.Background(), ai.DefaultConfig())
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestSplitConversation(t *testing.T) {
	system, history, last, err := splitConversation([]ai.Message{
		{Role: core.RoleSystem, Content: "be helpful"},
		{Role: core.RoleUser, Content: "first"},
		{Role: core.RoleAssistant, Content: "reply"},
		{Role: core.RoleUser, Content: "second"},
	})
	require.NoError(t, err)

	assert.Equal(t, "be helpful", system)
	assert.Equal(t, "second", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("reply"), history[1].Parts[0])
}

func TestSplitConversation_RequiresUserLast(t *testing.T) {
	_, _, _, err := splitConversation([]ai.Message{{Role: core.RoleSystem, Content: "x"}})
	assert.ErrorIs(t, err, ai.ErrEmptyInput)

	_, _, _, err = splitConversation([]ai.Message{
		{Role: core.RoleUser, Content: "q"},
		{Role: core.RoleAssistant, Content: "a"},
	})
	assert.ErrorIs(t, err, ai.ErrEmptyInput)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello, "), genai.Text("world")}},
		}},
	}
	assert.Equal(t, "Hello, world", responseText(resp))
}
