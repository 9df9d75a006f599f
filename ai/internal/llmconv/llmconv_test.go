package llmconv

import (
	"testing"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestMessages(t *testing.T) {
	msgs := []ai.Message{
		{Role: core.RoleSystem, Content: "be brief"},
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: "other", Content: "?"},
	}

	content := Messages(msgs)
	require.Len(t, content, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[3].Role)

	part, ok := content[1].Parts[0].(llms.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hi", part.Text)
}

func TestCallOptions(t *testing.T) {
	var opts llms.CallOptions
	for _, opt := range CallOptions(ai.CompletionRequest{MaxTokens: 256, Temperature: 0.7}) {
		opt(&opts)
	}
	assert.Equal(t, 256, opts.MaxTokens)
	assert.InDelta(t, 0.7, opts.Temperature, 1e-9)

	assert.Len(t, CallOptions(ai.CompletionRequest{}), 1)
}
