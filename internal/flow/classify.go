package flow

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/edubot/edubot/internal/ai"
)

// Classifier turns free-text learner input into intent signals and scores.
// Each check tries the AI gateway first and falls back to deterministic
// heuristics when no provider is available or the call fails, so the flow
// controller keeps working with the AI backend down.
type Classifier struct {
	router *ai.Router
}

func NewClassifier(router *ai.Router) *Classifier {
	return &Classifier{router: router}
}

// WantsToEnd reports whether the message expresses intent to end the session.
func (c *Classifier) WantsToEnd(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	reply, err := c.router.Generate(ctx, ai.TaskClassify, systemClassifier, endIntentPrompt(text), 8)
	if err != nil {
		slog.Debug("end intent classification fell back to keywords", "error", err)
		return endIntentFallback(text)
	}
	return isYes(reply)
}

// IsQuestion reports whether the message is a question asking for information
// rather than an answer or a statement.
func (c *Classifier) IsQuestion(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return false
	}
	reply, err := c.router.Generate(ctx, ai.TaskClassify, systemClassifier, isQuestionPrompt(text), 8)
	if err != nil {
		slog.Debug("question classification fell back to heuristics", "error", err)
		return isQuestionFallback(text)
	}
	return isYes(reply)
}

// ScoreAnswer evaluates a student answer against the question and reference
// material, returning a score in [0,1]. Unscorable answers get 0.5 so a
// flaky evaluator neither fails nor passes the student outright.
func (c *Classifier) ScoreAnswer(ctx context.Context, question, answer, material string) float64 {
	reply, err := c.router.Generate(ctx, ai.TaskScoring, systemEvaluator, scorePrompt(question, answer, material), 16)
	if err != nil {
		slog.Debug("answer scoring unavailable, using neutral score", "error", err)
		return 0.5
	}
	return parseScore(reply)
}

var endKeywords = []string{"end", "stop", "finish", "done", "quit", "exit", "bye", "goodbye"}

func endIntentFallback(text string) bool {
	lower := strings.ToLower(text)
	if len(strings.Fields(lower)) > 6 {
		return false
	}
	for _, kw := range endKeywords {
		for _, word := range strings.Fields(lower) {
			if strings.Trim(word, ".,!?") == kw {
				return true
			}
		}
	}
	return false
}

var questionWords = []string{"what", "how", "why", "when", "where", "who", "which", "can you", "could you", "explain"}

func isQuestionFallback(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if strings.HasSuffix(lower, "?") {
		return true
	}
	for _, qw := range questionWords {
		if strings.HasPrefix(lower, qw) {
			return true
		}
	}
	return false
}

func isYes(reply string) bool {
	return strings.Contains(strings.ToUpper(reply), "YES")
}

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseScore extracts the first numeric token from an evaluator reply and
// clamps it to [0,1]. Replies with no number at all score 0.5.
func parseScore(reply string) float64 {
	match := scorePattern.FindString(reply)
	if match == "" {
		return 0.5
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
