package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edubot/edubot/internal/ai"
	"github.com/edubot/edubot/internal/content"
)

// ErrSessionBusy is returned when a turn arrives while another turn for the
// same session is still being processed.
var ErrSessionBusy = errors.New("session is processing another turn")

// Config tunes the flow controller's state machine.
type Config struct {
	ExplanationSteps int
	PassThreshold    float64
	MinConversations int
	MaxConversations int
	MinQuizInterval  int
	MaxQuizInterval  int
	AutoQuiz         bool
	SearchLimit      int
}

func (c Config) withDefaults() Config {
	if c.ExplanationSteps <= 0 {
		c.ExplanationSteps = 3
	}
	if c.PassThreshold <= 0 {
		c.PassThreshold = 0.6
	}
	if c.MinConversations <= 0 {
		c.MinConversations = 8
	}
	if c.MaxConversations <= 0 {
		c.MaxConversations = 50
	}
	if c.MinQuizInterval <= 0 {
		c.MinQuizInterval = 3
	}
	if c.MaxQuizInterval <= 0 {
		c.MaxQuizInterval = 8
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 3
	}
	return c
}

// Controller drives tutoring sessions through the stage machine. One turn is
// processed per session at a time; concurrent turns for the same session are
// rejected with ErrSessionBusy. State is mutated on a clone and committed only
// after the reply is fully computed, so a cancelled turn leaves no trace.
type Controller struct {
	ai      *ai.Router
	content content.Provider
	store   Store
	cls     *Classifier
	cfg     Config
	logger  *slog.Logger

	mu      sync.Mutex
	handles map[string]*sessionHandle
}

type sessionHandle struct {
	mu          sync.Mutex
	sess        *Session
	subtopics   []content.Subtopic
	needsResync bool
}

func NewController(router *ai.Router, provider content.Provider, store Store, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		ai:      router,
		content: provider,
		store:   store,
		cls:     NewClassifier(router),
		cfg:     cfg.withDefaults(),
		logger:  logger,
		handles: make(map[string]*sessionHandle),
	}
}

// Start opens a new session on a topic. A topic with no teachable content
// completes immediately with an explanatory reply rather than an error.
func (c *Controller) Start(ctx context.Context, studentID, topic, sessionID string) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	subtopics, err := c.content.Subtopics(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("loading subtopics for %q: %w", topic, err)
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:        sessionID,
		StudentID: studentID,
		Topic:     topic,
		StartedAt: now,
		UpdatedAt: now,
		Stage:     StageIntro,
	}

	var reply string
	if len(subtopics) == 0 {
		sess.IsComplete = true
		sess.Stage = StageComplete
		reply = noContentMessage(topic)
	} else {
		limits := calculateTopicLimits(c.chunkCount(ctx, topic, subtopics), c.cfg)
		sess.MaxConversations = limits.MaxConversations
		sess.QuizFrequency = limits.QuizFrequency

		titles := make([]string, len(subtopics))
		for i, st := range subtopics {
			titles[i] = st.Title
		}
		reply = c.generate(ctx, ai.TaskTutoring, introPrompt(topic, titles), 300, fallbackIntro(topic))
	}

	if err := c.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	turn := Turn{Number: 0, AssistantText: reply, Stage: sess.Stage, Timestamp: now}
	sess.History = append(sess.History, turn)
	if err := c.store.AppendTurn(ctx, sess.ID, turn); err != nil {
		c.logger.Warn("recording intro turn failed", "session_id", sess.ID, "error", err)
	}

	c.mu.Lock()
	c.handles[sess.ID] = &sessionHandle{sess: sess, subtopics: subtopics}
	c.mu.Unlock()

	res := c.result(sess, reply, subtopicSources(subtopics))
	if sess.IsComplete {
		res.Summary = reply
	}
	c.logger.Info("session started", "session_id", sess.ID, "student_id", studentID,
		"topic", topic, "subtopics", len(subtopics), "max_conversations", sess.MaxConversations)
	return res, nil
}

// Continue processes one learner turn. Unknown sessions are loaded from the
// store, so sessions survive process restarts.
func (c *Controller) Continue(ctx context.Context, sessionID, userText string) (*Result, error) {
	h, err := c.handle(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !h.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer h.mu.Unlock()

	if h.needsResync {
		if err := c.store.Save(ctx, h.sess); err == nil {
			h.needsResync = false
		} else {
			c.logger.Warn("session resync failed, will retry", "session_id", sessionID, "error", err)
		}
	}

	if h.sess.IsComplete {
		res := c.result(h.sess, "This session is already complete. Start a new one to keep learning.", nil)
		res.Summary = summaryText(h.sess.Topic, h.sess.ComputeStats(time.Now().UTC()), h.sess.ConceptsLearned)
		return res, nil
	}

	work := h.sess.Clone()
	now := time.Now().UTC()
	work.TotalInteractions++
	work.UpdatedAt = now

	reply, sources := c.step(ctx, work, h.subtopics, strings.TrimSpace(userText))

	if err := work.Validate(); err != nil {
		return nil, fmt.Errorf("state machine produced invalid state: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// Turn abandoned mid-generation. Nothing is committed.
		return nil, err
	}

	turn := Turn{Number: work.TotalInteractions, UserText: userText, AssistantText: reply, Stage: work.Stage, Timestamp: now}
	work.History = append(work.History, turn)
	if err := c.store.Save(ctx, work); err != nil {
		c.logger.Warn("persisting session failed, serving from memory", "session_id", sessionID, "error", err)
		h.needsResync = true
	} else if err := c.store.AppendTurn(ctx, sessionID, turn); err != nil {
		c.logger.Warn("recording turn failed", "session_id", sessionID, "turn", turn.Number, "error", err)
		h.needsResync = true
	}
	h.sess = work

	res := c.result(work, reply, sources)
	if work.IsComplete {
		res.Summary = summaryText(work.Topic, work.ComputeStats(now), work.ConceptsLearned)
	}
	return res, nil
}

// Get returns the current state of a session without processing a turn.
func (c *Controller) Get(ctx context.Context, sessionID string) (*Session, error) {
	c.mu.Lock()
	h, ok := c.handles[sessionID]
	c.mu.Unlock()
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.sess.Clone(), nil
	}
	return c.store.Get(ctx, sessionID)
}

// step routes one turn through the transition priority order and returns the
// reply plus the content sources it drew on. It mutates work in place.
func (c *Controller) step(ctx context.Context, work *Session, subtopics []content.Subtopic, userText string) (string, []string) {
	// End intent always wins, whatever stage the session is in.
	if userText != "" && c.cls.WantsToEnd(ctx, userText) {
		return c.complete(work), nil
	}

	// A question interrupts the lesson unless it reads like a terse answer
	// to the pending check question.
	if userText != "" && !(work.WaitingForAnswer && looksLikeAnswer(userText)) {
		if c.cls.IsQuestion(ctx, userText) {
			return c.answerUserQuestion(ctx, work, userText)
		}
	}

	if work.WaitingForAnswer {
		if userText == "" {
			return "Take your time. The question was: " + work.CurrentQuestion, nil
		}
		return c.evaluateAnswer(ctx, work, subtopics, userText), nil
	}

	if work.Stage == StageQuiz {
		if userText == "" {
			return "Whenever you are ready, give the quiz a try.", nil
		}
		return c.gradeQuiz(ctx, work, userText), nil
	}

	if c.cfg.AutoQuiz && shouldAutoQuiz(work) {
		return c.startQuiz(ctx, work)
	}

	if work.TotalInteractions >= work.MaxConversations && work.MaxConversations > 0 {
		return c.complete(work), nil
	}

	switch work.Stage {
	case StageIntro:
		if len(subtopics) == 0 {
			return c.complete(work), nil
		}
		work.Stage = StageLearning
		work.ExplanationStep = 1
		return c.explain(ctx, work, subtopics)
	case StageLearning:
		if work.ExplanationStep < c.cfg.ExplanationSteps {
			work.ExplanationStep++
			return c.explain(ctx, work, subtopics)
		}
		return c.askCheckQuestion(ctx, work, subtopics)
	case StageFeedback:
		return c.advance(ctx, work, subtopics)
	default:
		// Stage drift from an older persisted session. Resume teaching.
		c.logger.Warn("unexpected stage, resuming lesson", "session_id", work.ID, "stage", work.Stage)
		work.Stage = StageLearning
		work.ExplanationStep = 1
		return c.explain(ctx, work, subtopics)
	}
}

func (c *Controller) explain(ctx context.Context, work *Session, subtopics []content.Subtopic) (string, []string) {
	st, ok := currentSubtopic(work, subtopics)
	if !ok {
		return c.complete(work), nil
	}
	prompt := explanationPrompt(work.Topic, st.Title, st.Body, work.ExplanationStep, c.cfg.ExplanationSteps, lastAssistantText(work))
	reply := c.generate(ctx, ai.TaskTutoring, prompt, 500, fallbackExplanation(st.Title, work.ExplanationStep))
	return reply, []string{st.Title}
}

func (c *Controller) askCheckQuestion(ctx context.Context, work *Session, subtopics []content.Subtopic) (string, []string) {
	st, ok := currentSubtopic(work, subtopics)
	if !ok {
		return c.complete(work), nil
	}
	question := c.generate(ctx, ai.TaskTutoring, checkQuestionPrompt(work.Topic, st.Title, st.Body), 200, fallbackCheckQuestion(st.Title))
	work.Stage = StageQuestion
	work.WaitingForAnswer = true
	work.CurrentQuestion = question
	return question, []string{st.Title}
}

func (c *Controller) evaluateAnswer(ctx context.Context, work *Session, subtopics []content.Subtopic, answer string) string {
	st, ok := currentSubtopic(work, subtopics)
	if !ok {
		st.Title = work.Topic
	}
	score := c.cls.ScoreAnswer(ctx, work.CurrentQuestion, answer, st.Body)
	work.ConceptScores = append(work.ConceptScores, score)
	correct := score >= c.cfg.PassThreshold
	if correct {
		work.MarkLearned(st.Title)
	}
	c.logger.Info("answer evaluated", "session_id", work.ID, "subtopic", st.Title,
		"score", score, "passed", correct)

	reply := c.generate(ctx, ai.TaskTutoring,
		answerFeedbackPrompt(work.CurrentQuestion, answer, st.Title, correct), 300, fallbackFeedback(correct))
	work.WaitingForAnswer = false
	work.CurrentQuestion = ""
	work.Stage = StageFeedback
	return reply
}

// advance moves past the feedback stage to the next subtopic, or completes
// the session when the last subtopic is done.
func (c *Controller) advance(ctx context.Context, work *Session, subtopics []content.Subtopic) (string, []string) {
	if len(work.ConceptScores) <= work.SubtopicIndex {
		// Feedback stage reached without a score on record, likely a resume
		// across an interrupted evaluation. Count it as a miss and move on.
		c.logger.Warn("missing score at feedback stage, recording zero",
			"session_id", work.ID, "subtopic_index", work.SubtopicIndex)
		work.ConceptScores = append(work.ConceptScores, 0)
	}
	work.SubtopicIndex++
	work.ExplanationStep = 0
	if work.SubtopicIndex >= len(subtopics) {
		return c.complete(work), nil
	}
	work.Stage = StageLearning
	work.ExplanationStep = 1
	next := subtopics[work.SubtopicIndex]
	bridge := c.generate(ctx, ai.TaskTutoring,
		transitionPrompt(work.Topic, next.Title, work.SubtopicIndex, len(subtopics)), 200, fallbackTransition(next.Title))
	body := c.generate(ctx, ai.TaskTutoring,
		explanationPrompt(work.Topic, next.Title, next.Body, 1, c.cfg.ExplanationSteps, ""), 500,
		fallbackExplanation(next.Title, 1))
	return bridge + "\n\n" + body, []string{next.Title}
}

func (c *Controller) answerUserQuestion(ctx context.Context, work *Session, question string) (string, []string) {
	passages, err := c.content.Search(ctx, work.Topic, question, c.cfg.SearchLimit)
	if err != nil {
		c.logger.Warn("content search failed", "session_id", work.ID, "error", err)
	}
	texts := make([]string, 0, len(passages))
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Text)
		sources = append(sources, p.ID)
	}
	reply := c.generate(ctx, ai.TaskTutoring, userQuestionPrompt(question, texts), 400, fallbackAnswerToQuestion())
	// Stage is untouched: after the detour the lesson resumes where it was.
	return reply, sources
}

func (c *Controller) startQuiz(ctx context.Context, work *Session) (string, []string) {
	difficulty := quizDifficulty(work.QuizScores)
	question := c.generate(ctx, ai.TaskTutoring,
		quizPrompt(work.Topic, work.ConceptsLearned, difficulty), 300, fallbackQuiz(work.Topic))
	work.Stage = StageQuiz
	c.logger.Info("auto quiz triggered", "session_id", work.ID,
		"interaction", work.TotalInteractions, "difficulty", difficulty)
	return question, nil
}

func (c *Controller) gradeQuiz(ctx context.Context, work *Session, answer string) string {
	performance := c.cls.ScoreAnswer(ctx, "Quiz on "+work.Topic, answer, "")
	work.QuizScores = append(work.QuizScores, performance)
	reply := c.generate(ctx, ai.TaskTutoring, quizFeedbackPrompt(work.Topic, answer, performance), 300, fallbackQuizFeedback())
	work.Stage = StageLearning
	if performance <= 0.5 {
		// Weak quiz result restarts the current subtopic's explanation
		// instead of advancing.
		work.ExplanationStep = 0
	}
	c.logger.Info("quiz graded", "session_id", work.ID, "performance", performance)
	return reply
}

// complete marks the session finished and returns the summary reply.
// Completion is one-way.
func (c *Controller) complete(work *Session) string {
	work.IsComplete = true
	work.Stage = StageComplete
	work.WaitingForAnswer = false
	work.CurrentQuestion = ""
	summary := summaryText(work.Topic, work.ComputeStats(work.UpdatedAt), work.ConceptsLearned)
	c.logger.Info("session completed", "session_id", work.ID,
		"interactions", work.TotalInteractions, "concepts", len(work.ConceptsLearned))
	return summary
}

// handle returns the cached in-memory handle for a session, loading it from
// the store on a resume. Subtopics are re-fetched so resumed sessions pick up
// the current content.
func (c *Controller) handle(ctx context.Context, sessionID string) (*sessionHandle, error) {
	c.mu.Lock()
	h, ok := c.handles[sessionID]
	c.mu.Unlock()
	if ok {
		return h, nil
	}

	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	subtopics, err := c.content.Subtopics(ctx, sess.Topic)
	if err != nil {
		return nil, fmt.Errorf("loading subtopics for %q: %w", sess.Topic, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.handles[sessionID]; ok {
		return existing, nil
	}
	h = &sessionHandle{sess: sess, subtopics: subtopics}
	c.handles[sessionID] = h
	c.logger.Info("session resumed", "session_id", sessionID, "stage", sess.Stage,
		"interactions", sess.TotalInteractions)
	return h, nil
}

// generate runs a tutoring generation and degrades to the deterministic
// fallback text on any failure, so one provider outage never kills a turn.
func (c *Controller) generate(ctx context.Context, task ai.TaskType, prompt string, maxTokens int, fallback string) string {
	reply, err := c.ai.Generate(ctx, task, systemTutor, prompt, maxTokens)
	if err != nil {
		c.logger.Warn("generation failed, using fallback reply", "task", task.String(), "error", err)
		return fallback
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return fallback
	}
	return reply
}

func (c *Controller) result(s *Session, reply string, sources []string) *Result {
	if sources == nil {
		sources = []string{}
	}
	return &Result{
		Reply:        reply,
		Topic:        s.Topic,
		SessionID:    s.ID,
		Stage:        s.Stage,
		IsComplete:   s.IsComplete,
		Interactions: s.TotalInteractions,
		Sources:      sources,
	}
}

func (c *Controller) chunkCount(ctx context.Context, topic string, subtopics []content.Subtopic) int {
	infos, err := c.content.Topics(ctx)
	if err == nil {
		for _, info := range infos {
			if strings.EqualFold(info.Name, topic) {
				return info.Chunks
			}
		}
	}
	return len(subtopics)
}

func currentSubtopic(s *Session, subtopics []content.Subtopic) (content.Subtopic, bool) {
	if s.SubtopicIndex < 0 || s.SubtopicIndex >= len(subtopics) {
		return content.Subtopic{}, false
	}
	return subtopics[s.SubtopicIndex], true
}

func lastAssistantText(s *Session) string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1].AssistantText
}

// looksLikeAnswer reports whether a message reads like a terse answer attempt
// rather than a new question: short and not interrogative.
func looksLikeAnswer(text string) bool {
	return len(strings.Fields(text)) <= 6 && !strings.Contains(text, "?")
}

func subtopicSources(subtopics []content.Subtopic) []string {
	out := make([]string, len(subtopics))
	for i, st := range subtopics {
		out[i] = st.Title
	}
	return out
}
