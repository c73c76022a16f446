package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edubot/edubot/internal/ai"
)

func TestRouter_Complete(t *testing.T) {
	r := ai.NewRouter(0)
	r.Register("mock", ai.NewMockProvider("hello"))

	resp, err := r.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
		Task:     ai.TaskTutoring,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("Content = %q, want hello", resp.Content)
	}
}

func TestRouter_FallbackChain(t *testing.T) {
	r := ai.NewRouter(0)
	r.Register("broken", &ai.MockProvider{Err: errors.New("boom")})
	r.Register("working", ai.NewMockProvider("fallback reply"))

	resp, err := r.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "fallback reply" {
		t.Errorf("Content = %q, want fallback reply", resp.Content)
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	r := ai.NewRouter(0)
	r.Register("broken", &ai.MockProvider{Err: errors.New("boom")})

	_, err := r.Complete(context.Background(), ai.CompletionRequest{})
	if err == nil {
		t.Fatal("Complete() should fail when all providers fail")
	}
}

func TestRouter_Generate(t *testing.T) {
	mock := ai.NewMockProvider("YES")
	r := ai.NewRouter(time.Second)
	r.Register("mock", mock)

	text, err := r.Generate(context.Background(), ai.TaskClassify, "You are a classifier.", "Is this a question?", 8)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "YES" {
		t.Errorf("Generate() = %q, want YES", text)
	}

	msgs := mock.LastRequest.Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	if mock.LastRequest.MaxTokens != 8 {
		t.Errorf("MaxTokens = %d, want 8", mock.LastRequest.MaxTokens)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	r := ai.NewRouter(0)
	if r.HasProvider() {
		t.Error("HasProvider() = true for empty router")
	}
	r.Register("mock", ai.NewMockProvider(""))
	if !r.HasProvider() {
		t.Error("HasProvider() = false after Register")
	}
}

func TestTaskType_String(t *testing.T) {
	tests := []struct {
		task ai.TaskType
		want string
	}{
		{ai.TaskTutoring, "tutoring"},
		{ai.TaskClassify, "classify"},
		{ai.TaskScoring, "scoring"},
		{ai.TaskType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.task.String(); got != tt.want {
			t.Errorf("TaskType(%d).String() = %q, want %q", tt.task, got, tt.want)
		}
	}
}
