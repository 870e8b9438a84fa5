package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider implements Provider for testing purposes. Responses are
// returned in the order they were queued; the prompts it receives are
// recorded for assertions.
type MockProvider struct {
	mu        sync.Mutex
	name      string
	responses []MockResponse
	calls     int
	Prompts   []string
}

// MockResponse is one canned reply.
type MockResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock"}
}

// Queue appends a canned reply.
func (m *MockProvider) Queue(text string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Text: text, Usage: Usage{PromptTokens: 100, OutputTokens: 50}})
	return m
}

// QueueError appends a canned failure.
func (m *MockProvider) QueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Err: err})
	return m
}

// GenerateText implements Provider. When the queue is exhausted the last
// response is repeated, so a single Queue call serves any number of items.
func (m *MockProvider) GenerateText(_ context.Context, prompt string, _ Options) (string, Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)
	if len(m.responses) == 0 {
		return "", Usage{}, fmt.Errorf("mock provider has no queued responses")
	}

	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++

	resp := m.responses[idx]
	return resp.Text, resp.Usage, resp.Err
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	return m.name
}

// CallCount returns how many times GenerateText was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
