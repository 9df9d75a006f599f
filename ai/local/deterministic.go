package local

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/docinx/ai"
)

// DeterministicName identifies the templated completer.
const DeterministicName = "deterministic"

const (
	maxExcerptDocs = 3
	maxExcerptLen  = 500
)

// NoQuestionReply is returned when the prompt has no user message.
const NoQuestionReply = "I didn't receive a clear question. Could you please rephrase your request?"

// DeterministicCompleter answers from retrieved excerpts using fixed templates.
type DeterministicCompleter struct{}

// NewDeterministicCompleter creates the templated completer.
func NewDeterministicCompleter() *DeterministicCompleter {
	return &DeterministicCompleter{}
}

// Name returns "deterministic".
func (d *DeterministicCompleter) Name() string { return DeterministicName }

// Complete never returns an error.
func (d *DeterministicCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	return d.Answer(req), nil
}

// Answer lists up to three retrieved excerpts when there are any and a
// limited-mode acknowledgment otherwise.
func (d *DeterministicCompleter) Answer(req ai.CompletionRequest) string {
	question := req.LastUserMessage()
	if question == "" {
		return NoQuestionReply
	}

	if len(req.RetrievedDocs) == 0 {
		return fmt.Sprintf("I understand you're asking about: '%s'\n\n", question) +
			"I'm currently operating in limited mode due to AI service constraints. " +
			"To get the most helpful response:\n\n" +
			"1. Try uploading relevant documents that might contain information about your question\n" +
			"2. Be as specific as possible in your queries\n" +
			"3. Try again in a few moments when full AI services may be restored\n\n" +
			"I apologize for the inconvenience and appreciate your patience."
	}

	docs := req.RetrievedDocs
	if len(docs) > maxExcerptDocs {
		docs = docs[:maxExcerptDocs]
	}

	parts := []string{
		fmt.Sprintf("Based on your question about '%s', I found the following relevant information:", question),
		"",
		"**Relevant Content:**",
	}
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, truncate(doc, maxExcerptLen)), "")
	}
	parts = append(parts,
		"**Summary:**",
		fmt.Sprintf("The above information relates to your question about %s. ", question)+
			"Please review the relevant content sections for detailed information.",
		"",
		"*(This response was generated using document retrieval due to AI service limitations. "+
			"For more detailed analysis, please try again later when full AI services are available.)*",
	)
	return strings.Join(parts, "\n")
}

// truncate cuts s to n runes and marks the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
