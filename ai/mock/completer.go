package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/knowbot/ai"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc produces the completion text for both Complete and
	// CompleteStream if set. If nil, the last user message is echoed.
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)

	mu        sync.Mutex
	callCount int
	requests  []ai.CompletionRequest
}

var _ ai.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a mock completer that echoes the last user message.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete returns the injected or echoed completion.
func (m *MockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	return m.complete(ctx, req)
}

// CompleteStream delivers the completion word by word, then returns it whole.
func (m *MockCompleter) CompleteStream(ctx context.Context, req ai.CompletionRequest, onChunk func(chunk string) error) (string, error) {
	text, err := m.complete(ctx, req)
	if err != nil {
		return "", err
	}
	for _, piece := range strings.SplitAfter(text, " ") {
		if piece == "" {
			continue
		}
		if err := onChunk(piece); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (m *MockCompleter) complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.requests = append(m.requests, req)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == ai.RoleUser {
			return req.Messages[i].Content, nil
		}
	}
	return "", nil
}

// CallCount returns the number of completions requested.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns every request received, in call order.
func (m *MockCompleter) Requests() []ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.CompletionRequest(nil), m.requests...)
}

// Reset clears the call count, recorded requests and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.requests = nil
	m.CompleteFunc = nil
}
