package ai_test

import (
	"context"
	"testing"

	"github.com/edubot/edubot/internal/ai"
)

func TestMockProviderRespondFuncOverridesQueue(t *testing.T) {
	mock := &ai.MockProvider{
		Response: "static",
		Queue:    []string{"queued"},
		RespondFunc: func(req ai.CompletionRequest) (string, error) {
			return "scripted", nil
		},
	}

	resp, err := mock.Complete(context.Background(), ai.CompletionRequest{Task: ai.TaskTutoring})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "scripted" {
		t.Errorf("Content = %q, want %q", resp.Content, "scripted")
	}
	if len(mock.Queue) != 1 {
		t.Errorf("queue drained while RespondFunc is set: %v", mock.Queue)
	}
}

func TestMockProviderDrainsQueueThenRepeats(t *testing.T) {
	mock := &ai.MockProvider{Response: "fallback", Queue: []string{"first", "second"}}
	ctx := context.Background()

	for _, want := range []string{"first", "second", "fallback", "fallback"} {
		resp, err := mock.Complete(ctx, ai.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
		if resp.Content != want {
			t.Errorf("Content = %q, want %q", resp.Content, want)
		}
	}
}
