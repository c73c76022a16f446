package flow

// TopicLimits are the per-topic session bounds derived from how much content
// a topic has. Bigger topics get longer sessions and more frequent quizzes.
type TopicLimits struct {
	MaxConversations int
	QuizFrequency    int
}

// calculateTopicLimits scales the conversation budget with the topic's chunk
// count (four turns per chunk) and tightens the quiz interval as content
// grows, both clamped to the configured bounds.
func calculateTopicLimits(chunks int, cfg Config) TopicLimits {
	maxConv := clampInt(4*chunks, cfg.MinConversations, cfg.MaxConversations)
	freq := clampInt(cfg.MaxQuizInterval-chunks/5, cfg.MinQuizInterval, cfg.MaxQuizInterval)
	return TopicLimits{MaxConversations: maxConv, QuizFrequency: freq}
}

// shouldAutoQuiz reports whether this turn should interrupt the lesson with a
// quiz: the interaction count has hit a multiple of the quiz frequency, the
// session is past its opening turns, a quiz is not already in progress, and
// there is at least one learned concept to quiz on.
func shouldAutoQuiz(s *Session) bool {
	if s.QuizFrequency <= 0 || s.TotalInteractions <= 2 {
		return false
	}
	if s.Stage == StageQuiz || s.WaitingForAnswer {
		return false
	}
	if len(s.ConceptsLearned) == 0 {
		return false
	}
	return s.TotalInteractions%s.QuizFrequency == 0
}

// quizDifficulty picks a difficulty from the average of prior quiz scores:
// below 0.5 stays easy, below 0.8 medium, otherwise hard. With no quiz
// history yet it starts at medium.
func quizDifficulty(scores []float64) string {
	if len(scores) == 0 {
		return "medium"
	}
	total := 0.0
	for _, v := range scores {
		total += v
	}
	avg := total / float64(len(scores))
	switch {
	case avg < 0.5:
		return "easy"
	case avg < 0.8:
		return "medium"
	default:
		return "hard"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
