// Package flow implements the tutoring session flow controller: a resumable,
// persisted state machine that routes each learner utterance to the next
// action, classifies free-text input into intent signals, and schedules
// automatic quizzes.
package flow

import (
	"fmt"
	"time"
)

// Stage is the current phase of the per-session state machine.
type Stage string

const (
	StageIntro    Stage = "intro"
	StageLearning Stage = "learning"
	StageQuestion Stage = "question"
	StageFeedback Stage = "feedback"
	StageQuiz     Stage = "quiz"
	StageComplete Stage = "complete"
)

// Turn is one request/response exchange within a session. Turns are
// append-only: once recorded they are never mutated.
type Turn struct {
	Number        int       `json:"turn"`
	UserText      string    `json:"user_text,omitempty"`
	AssistantText string    `json:"assistant_text"`
	Stage         Stage     `json:"stage"`
	Timestamp     time.Time `json:"timestamp"`
}

// Session is one learner's durable progress through one topic.
type Session struct {
	ID        string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	Topic     string    `json:"topic"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IsComplete bool  `json:"is_complete"`
	Stage      Stage `json:"stage"`

	// Progress cursor.
	SubtopicIndex   int `json:"subtopic_index"`
	ExplanationStep int `json:"explanation_step"`

	// Pending interaction.
	WaitingForAnswer bool   `json:"waiting_for_answer"`
	CurrentQuestion  string `json:"current_question,omitempty"`

	// Accumulated learning record.
	ConceptsLearned   []string  `json:"concepts_learned"`
	ConceptScores     []float64 `json:"concept_scores"`
	QuizScores        []float64 `json:"quiz_scores"`
	TotalInteractions int       `json:"total_interactions"`

	// Per-topic limits derived from content volume at session start.
	QuizFrequency    int `json:"quiz_frequency"`
	MaxConversations int `json:"max_conversations"`

	History []Turn `json:"conversation_history"`
}

// Clone returns a deep copy. The controller mutates a clone per turn and
// commits it only after the reply is fully computed, so an abandoned turn
// never leaves torn state behind.
func (s *Session) Clone() *Session {
	out := *s
	out.ConceptsLearned = append([]string(nil), s.ConceptsLearned...)
	out.ConceptScores = append([]float64(nil), s.ConceptScores...)
	out.QuizScores = append([]float64(nil), s.QuizScores...)
	out.History = append([]Turn(nil), s.History...)
	return &out
}

// MarkLearned appends a concept title to the learned set, preserving order
// and skipping duplicates.
func (s *Session) MarkLearned(title string) {
	for _, c := range s.ConceptsLearned {
		if c == title {
			return
		}
	}
	s.ConceptsLearned = append(s.ConceptsLearned, title)
}

// Validate checks the cross-field invariants the state machine maintains.
func (s *Session) Validate() error {
	if s.WaitingForAnswer && s.CurrentQuestion == "" {
		return fmt.Errorf("session %s: waiting for answer without a current question", s.ID)
	}
	if s.WaitingForAnswer && s.Stage != StageQuestion {
		return fmt.Errorf("session %s: waiting for answer in stage %q", s.ID, s.Stage)
	}
	if s.IsComplete && s.Stage != StageComplete {
		return fmt.Errorf("session %s: complete but stage is %q", s.ID, s.Stage)
	}
	if s.SubtopicIndex < 0 || s.ExplanationStep < 0 {
		return fmt.Errorf("session %s: negative progress cursor", s.ID)
	}
	return nil
}

// Stats holds the summary numbers reported when a session completes.
type Stats struct {
	TotalInteractions int     `json:"total_interactions"`
	ConceptsLearned   int     `json:"concepts_learned"`
	QuizzesTaken      int     `json:"quizzes_taken"`
	AverageScore      float64 `json:"average_score"`
	DurationMinutes   float64 `json:"duration_minutes"`
}

// ComputeStats derives summary statistics as of the given time.
func (s *Session) ComputeStats(now time.Time) Stats {
	return Stats{
		TotalInteractions: s.TotalInteractions,
		ConceptsLearned:   len(s.ConceptsLearned),
		QuizzesTaken:      len(s.QuizScores),
		AverageScore:      s.AverageScore(),
		DurationMinutes:   now.Sub(s.StartedAt).Minutes(),
	}
}

// AverageScore is the mean over all evaluated answers and quizzes, zero when
// nothing has been scored yet.
func (s *Session) AverageScore() float64 {
	n := len(s.ConceptScores) + len(s.QuizScores)
	if n == 0 {
		return 0
	}
	total := 0.0
	for _, v := range s.ConceptScores {
		total += v
	}
	for _, v := range s.QuizScores {
		total += v
	}
	return total / float64(n)
}

// Result is the structured outcome of one processed turn, handed back to the
// transport layer.
type Result struct {
	Reply        string   `json:"reply"`
	Topic        string   `json:"topic"`
	SessionID    string   `json:"session_id"`
	Stage        Stage    `json:"stage"`
	IsComplete   bool     `json:"is_complete"`
	Interactions int      `json:"interaction_count"`
	Sources      []string `json:"sources"`
	Summary      string   `json:"session_summary,omitempty"`
}
