package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/core"
)

const (
	// excerptLength bounds each retrieved excerpt placed in the prompt, in runes.
	excerptLength = 300

	// historyWindow is the number of recent turns sent to the model.
	historyWindow = 6
)

const assistantIntro = "You are DocINX, an AI assistant that helps users understand and query their documents. "

const groundedInstructions = `

Your task:
1. Answer the user's question based on the provided document context
2. Be specific and cite information from the documents when relevant
3. If the context doesn't fully answer the question, acknowledge what you can and cannot determine
4. Maintain conversation continuity with previous messages
5. Be helpful, accurate, and concise

Format your response clearly and include relevant quotes or references when appropriate.`

const ungroundedInstructions = `No relevant documents were found for this query.

Your task:
1. Acknowledge that no specific documents were found
2. Provide general guidance if possible
3. Suggest ways the user might find the information (uploading relevant documents, rephrasing query, etc.)
4. Maintain conversation continuity
5. Be helpful and encouraging

Keep responses constructive and guide the user toward success.`

// systemPrompt describes how the sources were found, or that none were.
func systemPrompt(method string, sources int) string {
	if sources == 0 {
		return assistantIntro + ungroundedInstructions
	}
	label := strings.TrimSuffix(method, "_search")
	return assistantIntro + fmt.Sprintf("I found %d relevant sources using %s search.", sources, label) + groundedInstructions
}

// contextEntry is one retrieved excerpt as it appears in the prompt.
type contextEntry struct {
	title   string
	excerpt string
}

// userPrompt wraps the question with the retrieved context.
func userPrompt(question string, entries []contextEntry) string {
	if len(entries) == 0 {
		return "No relevant documents found in the knowledge base.\n\n" +
			"User question: " + question + "\n\n" +
			"Please provide a helpful response and suggest how the user might find the information they need."
	}

	var b strings.Builder
	b.WriteString("Context from documents:\n**Relevant Information from Documents:**\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. From '%s':\n   %s\n\n", i+1, e.title, e.excerpt)
	}
	b.WriteString("\nUser question: " + question + "\n\n")
	b.WriteString("Please answer based on the provided context and our conversation history.")
	return b.String()
}

// buildPrompt assembles the system instruction, the conversation window and
// the question, then bounds the total to maxLength runes. Oldest history
// turns go first, then trailing context entries. The system instruction
// describes the entries that survive, and it and the question are always
// kept, even when they alone exceed maxLength.
func buildPrompt(method, question string, history []ai.Message, entries []contextEntry, maxLength int) []ai.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	system := systemPrompt(method, len(entries))
	user := userPrompt(question, entries)
	total := runes(system) + runes(user)
	for _, m := range history {
		total += runes(m.Content)
	}

	for total > maxLength && len(history) > 0 {
		total -= runes(history[0].Content)
		history = history[1:]
	}
	for total > maxLength && len(entries) > 0 {
		entries = entries[:len(entries)-1]
		nextSystem, nextUser := systemPrompt(method, len(entries)), userPrompt(question, entries)
		total += runes(nextSystem) - runes(system) + runes(nextUser) - runes(user)
		system, user = nextSystem, nextUser
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: core.RoleSystem, Content: system})
	messages = append(messages, history...)
	return append(messages, ai.Message{Role: core.RoleUser, Content: user})
}

// excerpt cuts s to n runes and marks the cut.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func runes(s string) int {
	return utf8.RuneCountInString(s)
}
