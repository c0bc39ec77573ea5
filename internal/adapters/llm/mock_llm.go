package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskchat/taskchat/internal/domain"
)

// MockModel is a scriptable domain.ModelClient for local mode and tests.
// Enqueued results are returned in order; once the script is exhausted it
// falls back to a canned echo reply with no tool calls.
type MockModel struct {
	mu       sync.Mutex
	script   []domain.CompletionResult
	Err      error
	Requests []domain.CompletionRequest
}

func NewMockModel() *MockModel {
	return &MockModel{}
}

// Enqueue appends scripted results, returned one per Complete call.
func (m *MockModel) Enqueue(results ...domain.CompletionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, results...)
}

func (m *MockModel) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return &next, nil
	}

	var lastUser string
	for _, t := range req.Turns {
		if t.Role == domain.RoleUser && t.Text != "" {
			lastUser = t.Text
		}
	}
	return &domain.CompletionResult{
		Text: fmt.Sprintf("I heard you. You said: %q. Tell me what you'd like to do with your tasks.", lastUser),
	}, nil
}
