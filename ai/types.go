package ai

import "github.com/poiesic/docinx/core"

// Message is one turn of a completion prompt.
type Message struct {
	Role    core.MessageRole
	Content string
}

// CompletionRequest is the input to a Completer.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64

	// RetrievedDocs carries the contents of retrieved chunks, best first.
	// Remote providers see them inside Messages already; local fallbacks
	// use them to build an answer without a model.
	RetrievedDocs []string
}

// SystemPrompt returns the content of the first system message, if any.
func (r CompletionRequest) SystemPrompt() string {
	for _, m := range r.Messages {
		if m.Role == core.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// LastUserMessage returns the content of the most recent user message, if any.
func (r CompletionRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == core.RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
