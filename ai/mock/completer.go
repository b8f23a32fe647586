package mock

import (
	"context"
	"sync"

	"github.com/poiesic/adala/ai"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Reply.
	CompleteFunc func(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error)

	// Reply is the default completion text.
	Reply string

	model string

	mu      sync.Mutex
	prompts []string
	options []ai.CompletionOptions
}

// NewMockCompleter creates a mock completer answering as model.
func NewMockCompleter(model string) *MockCompleter {
	return &MockCompleter{model: model}
}

// Complete records the call and returns the injected or default reply.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, opts)
	fn := m.CompleteFunc
	reply := m.Reply
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	return reply, nil
}

// Model names the mocked model.
func (m *MockCompleter) Model() string {
	return m.model
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Options returns a copy of every option set received, in call order.
func (m *MockCompleter) Options() []ai.CompletionOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.CompletionOptions(nil), m.options...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.options = nil
	m.CompleteFunc = nil
	m.Reply = ""
}
