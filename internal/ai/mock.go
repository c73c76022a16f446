package ai

import "context"

// MockProvider is a test double for generation providers. Responses are
// served from the queue first, then Response repeats indefinitely.
type MockProvider struct {
	Response    string
	Queue       []string
	Err         error
	RespondFunc func(req CompletionRequest) (string, error) // overrides Queue and Response when set
	LastRequest *CompletionRequest                          // captures the last request for inspection
	Requests    []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.LastRequest = &req
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	if m.RespondFunc != nil {
		content, err := m.RespondFunc(req)
		if err != nil {
			return CompletionResponse{}, err
		}
		return CompletionResponse{
			Content:      content,
			Model:        "mock",
			InputTokens:  10,
			OutputTokens: len(content),
		}, nil
	}
	content := m.Response
	if len(m.Queue) > 0 {
		content = m.Queue[0]
		m.Queue = m.Queue[1:]
	}
	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
