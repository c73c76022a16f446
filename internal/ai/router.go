package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Router selects a provider for each request, falling through registered
// providers in order until one succeeds. Every call is bounded by the
// configured timeout so a hung provider cannot stall a turn.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	timeout   time.Duration
	mu        sync.RWMutex
}

// NewRouter creates a new generation router. A zero timeout disables the
// per-call deadline.
func NewRouter(timeout time.Duration) *Router {
	return &Router{
		providers: make(map[string]Provider),
		timeout:   timeout,
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// Complete routes a request to the first available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("generation provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			continue
		}

		slog.Debug("generation request completed",
			"provider", name,
			"model", resp.Model,
			"task", req.Task.String(),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all generation providers failed")
}

// Generate is the two-string contract the flow controller consumes: a system
// instruction plus one prompt, returning bare text.
func (r *Router) Generate(ctx context.Context, task TaskType, system, prompt string, maxTokens int) (string, error) {
	resp, err := r.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Task:      task,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
