package fallback

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docinx/ai"
	"github.com/poiesic/docinx/ai/local"
	"github.com/poiesic/docinx/breaker"
	"github.com/poiesic/docinx/retry"
)

// ApologyReply is returned when even the templated completer fails.
const ApologyReply = "I apologize, but I'm currently unable to process your request due to technical difficulties. Please try again later."

// CompletionChain answers prompts.
type CompletionChain = Chain[ai.CompletionRequest, string]

// NewCompletionChain creates the completion chain over providers with the
// deterministic terminal, which answers from req.RetrievedDocs.
// Defaults: 2 attempts per provider, breakers 3 failures / 180s / 3 successes.
func NewCompletionChain(providers []Provider[ai.CompletionRequest, string], opts ...Option) (*CompletionChain, error) {
	det := local.NewDeterministicCompleter()
	terminal := TerminalFunc(det.Name(), func(_ context.Context, req ai.CompletionRequest) string {
		return det.Answer(req)
	})

	opts = append([]Option{
		WithPolicy(retry.Exponential(2)),
		WithBreakerConfig(breaker.LLMConfig()),
	}, opts...)
	chain, err := New("completion", providers, terminal, CompletionKey, opts...)
	if err != nil {
		return nil, err
	}
	chain.lastWord = func(ai.CompletionRequest) string {
		return ApologyReply
	}
	return chain, nil
}

// CompletionKey hashes the messages and generation parameters.
// Retrieved documents only influence the terminal, which is never cached,
// so they are not part of the key.
func CompletionKey(req ai.CompletionRequest) string {
	h, _ := blake2b.New(32, nil)
	for _, m := range req.Messages {
		fmt.Fprintf(h, "%s\x00%s\x00", m.Role, m.Content)
	}
	fmt.Fprintf(h, "%d\x00%g", req.MaxTokens, req.Temperature)
	return hex.EncodeToString(h.Sum(nil))
}
