package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docinx/ai"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Reply.
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)

	// Reply is the default answer. Empty means "mock reply".
	Reply string

	mu        sync.Mutex
	callCount int
	requests  []ai.CompletionRequest
}

// NewMockCompleter creates a mock completer answering "mock reply".
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// WithCompleteFunc sets CompleteFunc and returns the mock.
func (m *MockCompleter) WithCompleteFunc(fn func(ctx context.Context, req ai.CompletionRequest) (string, error)) *MockCompleter {
	m.CompleteFunc = fn
	return m
}

// Complete records req and answers.
func (m *MockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	fn := m.CompleteFunc
	reply := m.Reply
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if reply == "" {
		reply = "mock reply"
	}
	return reply, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockCompleter) LastRequest() ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.CompletionRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears the recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.CompleteFunc = nil
}
