// Package ai provides a provider-agnostic gateway to the text-generation
// service, with ordered fallback across providers. The flow controller treats
// it as a black box: the same Complete call serves open-ended tutoring
// replies and forced-format classification replies.
package ai

import "context"

// TaskType labels the kind of generation call for routing and logging.
type TaskType int

const (
	TaskTutoring TaskType = iota // open-ended explanation, question, feedback text
	TaskClassify                 // constrained YES/NO classification
	TaskScoring                  // constrained numeric scoring
)

func (t TaskType) String() string {
	switch t {
	case TaskTutoring:
		return "tutoring"
	case TaskClassify:
		return "classify"
	case TaskScoring:
		return "scoring"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a generation call.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from a generation call.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all generation providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
