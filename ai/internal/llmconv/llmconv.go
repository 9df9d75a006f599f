// Package llmconv converts docinx prompt types to langchaingo message content.
package llmconv

import (
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
	"github.com/tmc/langchaingo/llms"
)

// Messages maps ai messages onto langchaingo chat message types.
// Unknown roles are sent as human turns.
func Messages(msgs []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		content = append(content, llms.TextParts(chatType(m.Role), m.Content))
	}
	return content
}

// CallOptions builds the generation options for req.
func CallOptions(req ai.CompletionRequest) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	return opts
}

func chatType(role core.MessageRole) llms.ChatMessageType {
	switch role {
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
