package mock

import (
	"context"
	"strings"
	"sync"
)

// MockChatModel is a test double for ai.ChatModel.
// Responses can be scripted per user-prompt substring, with an optional
// catch-all default and a function-field override.
type MockChatModel struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// DefaultResponse is returned when no scripted response matches.
	DefaultResponse string

	mu        sync.Mutex
	responses map[string]string // user-prompt substring -> response
	errors    map[string]error  // user-prompt substring -> error
	callCount int
}

// NewMockChatModel creates a mock chat model.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{
		responses: make(map[string]string),
		errors:    make(map[string]error),
	}
}

// RespondWith scripts a response for any user prompt containing the substring.
func (m *MockChatModel) RespondWith(substring, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[substring] = response
}

// FailWith scripts an error for any user prompt containing the substring.
func (m *MockChatModel) FailWith(substring string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[substring] = err
}

// Generate returns the first scripted response whose substring matches the
// prompt's question line, the default response otherwise. Matching against
// the whole prompt would also hit the retrieved excerpts embedded in it, so
// only the text after the final "Question: " marker is considered; prompts
// without the marker are matched whole.
func (m *MockChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, systemPrompt, userPrompt)
	}

	target := questionLine(userPrompt)
	for substring, err := range m.errors {
		if strings.Contains(target, substring) {
			return "", err
		}
	}
	for substring, response := range m.responses {
		if strings.Contains(target, substring) {
			return response, nil
		}
	}
	return m.DefaultResponse, nil
}

// questionLine extracts the question from a grounding prompt.
func questionLine(userPrompt string) string {
	const marker = "Question: "
	if i := strings.LastIndex(userPrompt, marker); i >= 0 {
		return userPrompt[i+len(marker):]
	}
	return userPrompt
}

// CallCount returns the number of Generate calls.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
