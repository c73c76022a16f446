package flow

import "testing"

func TestCalculateTopicLimits(t *testing.T) {
	cfg := Config{}.withDefaults()

	tests := []struct {
		name     string
		chunks   int
		wantConv int
		wantFreq int
	}{
		{"tiny topic clamps to minimum", 1, 8, 8},
		{"small topic", 3, 12, 8},
		{"medium topic", 10, 40, 6},
		{"large topic clamps conversations", 25, 50, 3},
		{"huge topic clamps frequency", 100, 50, 3},
		{"no chunks", 0, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateTopicLimits(tt.chunks, cfg)
			if got.MaxConversations != tt.wantConv {
				t.Errorf("MaxConversations = %d, want %d", got.MaxConversations, tt.wantConv)
			}
			if got.QuizFrequency != tt.wantFreq {
				t.Errorf("QuizFrequency = %d, want %d", got.QuizFrequency, tt.wantFreq)
			}
		})
	}
}

func TestShouldAutoQuiz(t *testing.T) {
	base := Session{
		Stage:             StageLearning,
		QuizFrequency:     3,
		TotalInteractions: 6,
		ConceptsLearned:   []string{"Cell Structure"},
	}

	tests := []struct {
		name   string
		mutate func(*Session)
		want   bool
	}{
		{"eligible turn", func(s *Session) {}, true},
		{"off-frequency turn", func(s *Session) { s.TotalInteractions = 7 }, false},
		{"too early in session", func(s *Session) { s.TotalInteractions = 2; s.QuizFrequency = 1 }, false},
		{"already in quiz", func(s *Session) { s.Stage = StageQuiz }, false},
		{"awaiting an answer", func(s *Session) { s.WaitingForAnswer = true }, false},
		{"nothing learned yet", func(s *Session) { s.ConceptsLearned = nil }, false},
		{"frequency disabled", func(s *Session) { s.QuizFrequency = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			s.ConceptsLearned = append([]string(nil), base.ConceptsLearned...)
			tt.mutate(&s)
			if got := shouldAutoQuiz(&s); got != tt.want {
				t.Errorf("shouldAutoQuiz() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuizDifficulty(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"no quiz history starts medium", nil, "medium"},
		{"struggling", []float64{0.2, 0.4}, "easy"},
		{"average", []float64{0.6, 0.7}, "medium"},
		{"strong", []float64{0.9, 1.0}, "hard"},
		{"boundary at half", []float64{0.5}, "medium"},
		{"boundary at eighty", []float64{0.8}, "hard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quizDifficulty(tt.scores); got != tt.want {
				t.Errorf("quizDifficulty(%v) = %q, want %q", tt.scores, got, tt.want)
			}
		})
	}
}
