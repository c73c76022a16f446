package ai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edubot/edubot/internal/ai"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "0.8"}}],
			"model": "gpt-4o-mini",
			"usage": {"prompt_tokens": 20, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p := ai.NewOpenAIProvider("test-key", ai.WithBaseURL(srv.URL))

	resp, err := p.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "score this"}},
		Task:     ai.TaskScoring,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "0.8" {
		t.Errorf("Content = %q, want 0.8", resp.Content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
}

func TestOpenAIProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": "invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := ai.NewOpenAIProvider("bad-key", ai.WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error on non-200 status")
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	p := ai.NewOpenAIProvider("test-key", ai.WithBaseURL(srv.URL))
	_, err := p.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error when no choices")
	}
}
