package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edubot/edubot/internal/platform/database"
)

const storeQueryTimeout = 5 * time.Second

// PostgresStore persists sessions and their turn history in PostgreSQL.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the session tables if they do not exist yet.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	_, err := p.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id                 TEXT PRIMARY KEY,
			student_id         TEXT NOT NULL,
			topic              TEXT NOT NULL,
			started_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL,
			is_complete        BOOLEAN NOT NULL DEFAULT FALSE,
			stage              TEXT NOT NULL,
			subtopic_index     INT NOT NULL DEFAULT 0,
			explanation_step   INT NOT NULL DEFAULT 0,
			waiting_for_answer BOOLEAN NOT NULL DEFAULT FALSE,
			current_question   TEXT NOT NULL DEFAULT '',
			concepts_learned   JSONB NOT NULL DEFAULT '[]',
			concept_scores     JSONB NOT NULL DEFAULT '[]',
			quiz_scores        JSONB NOT NULL DEFAULT '[]',
			quiz_frequency     INT NOT NULL DEFAULT 5,
			max_conversations  INT NOT NULL DEFAULT 20,
			total_interactions INT NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_student ON sessions (student_id, started_at DESC);

		CREATE TABLE IF NOT EXISTS session_turns (
			session_id     TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
			turn_number    INT NOT NULL,
			user_text      TEXT NOT NULL DEFAULT '',
			assistant_text TEXT NOT NULL,
			stage          TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, turn_number)
		);
	`)
	if err != nil {
		return fmt.Errorf("ensuring session schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	return p.upsert(ctx, s)
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	return p.upsert(ctx, s)
}

func (p *PostgresStore) upsert(ctx context.Context, s *Session) error {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	concepts, err := json.Marshal(emptyIfNil(s.ConceptsLearned))
	if err != nil {
		return fmt.Errorf("marshaling concepts: %w", err)
	}
	conceptScores, err := json.Marshal(emptyScoresIfNil(s.ConceptScores))
	if err != nil {
		return fmt.Errorf("marshaling concept scores: %w", err)
	}
	quizScores, err := json.Marshal(emptyScoresIfNil(s.QuizScores))
	if err != nil {
		return fmt.Errorf("marshaling quiz scores: %w", err)
	}

	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO sessions (
			id, student_id, topic, started_at, updated_at, is_complete, stage,
			subtopic_index, explanation_step, waiting_for_answer, current_question,
			concepts_learned, concept_scores, quiz_scores,
			quiz_frequency, max_conversations, total_interactions
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			is_complete = EXCLUDED.is_complete,
			stage = EXCLUDED.stage,
			subtopic_index = EXCLUDED.subtopic_index,
			explanation_step = EXCLUDED.explanation_step,
			waiting_for_answer = EXCLUDED.waiting_for_answer,
			current_question = EXCLUDED.current_question,
			concepts_learned = EXCLUDED.concepts_learned,
			concept_scores = EXCLUDED.concept_scores,
			quiz_scores = EXCLUDED.quiz_scores,
			total_interactions = EXCLUDED.total_interactions
	`, s.ID, s.StudentID, s.Topic, s.StartedAt, s.UpdatedAt, s.IsComplete, string(s.Stage),
		s.SubtopicIndex, s.ExplanationStep, s.WaitingForAnswer, s.CurrentQuestion,
		concepts, conceptScores, quizScores,
		s.QuizFrequency, s.MaxConversations, s.TotalInteractions)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	s, err := p.scanSession(p.db.Pool.QueryRow(ctx, `
		SELECT id, student_id, topic, started_at, updated_at, is_complete, stage,
		       subtopic_index, explanation_step, waiting_for_answer, current_question,
		       concepts_learned, concept_scores, quiz_scores,
		       quiz_frequency, max_conversations, total_interactions
		FROM sessions WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	if err := p.loadTurns(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) AppendTurn(ctx context.Context, sessionID string, t Turn) error {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	tag, err := p.db.Pool.Exec(ctx, `
		INSERT INTO session_turns (session_id, turn_number, user_text, assistant_text, stage, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, turn_number) DO NOTHING
	`, sessionID, t.Number, t.UserText, t.AssistantText, string(t.Stage), t.Timestamp)
	if err != nil {
		return fmt.Errorf("appending turn %d to session %s: %w", t.Number, sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil // turn already recorded, append is idempotent
	}
	return nil
}

func (p *PostgresStore) ListByStudent(ctx context.Context, studentID string, limit int) ([]*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, storeQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.Pool.Query(ctx, `
		SELECT id, student_id, topic, started_at, updated_at, is_complete, stage,
		       subtopic_index, explanation_step, waiting_for_answer, current_question,
		       concepts_learned, concept_scores, quiz_scores,
		       quiz_frequency, max_conversations, total_interactions
		FROM sessions WHERE student_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for student %s: %w", studentID, err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := p.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}

	for _, s := range out {
		if err := p.loadTurns(ctx, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *PostgresStore) loadTurns(ctx context.Context, s *Session) error {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT turn_number, user_text, assistant_text, stage, created_at
		FROM session_turns WHERE session_id = $1
		ORDER BY turn_number
	`, s.ID)
	if err != nil {
		return fmt.Errorf("loading turns for session %s: %w", s.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t Turn
		var stage string
		if err := rows.Scan(&t.Number, &t.UserText, &t.AssistantText, &stage, &t.Timestamp); err != nil {
			return fmt.Errorf("scanning turn row: %w", err)
		}
		t.Stage = Stage(stage)
		s.History = append(s.History, t)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanSession(row rowScanner) (*Session, error) {
	var s Session
	var stage, question string
	var concepts, conceptScores, quizScores []byte
	err := row.Scan(&s.ID, &s.StudentID, &s.Topic, &s.StartedAt, &s.UpdatedAt,
		&s.IsComplete, &stage, &s.SubtopicIndex, &s.ExplanationStep,
		&s.WaitingForAnswer, &question, &concepts, &conceptScores, &quizScores,
		&s.QuizFrequency, &s.MaxConversations, &s.TotalInteractions)
	if err != nil {
		return nil, err
	}
	s.Stage = Stage(stage)
	s.CurrentQuestion = question
	if err := json.Unmarshal(concepts, &s.ConceptsLearned); err != nil {
		return nil, fmt.Errorf("unmarshaling concepts: %w", err)
	}
	if err := json.Unmarshal(conceptScores, &s.ConceptScores); err != nil {
		return nil, fmt.Errorf("unmarshaling concept scores: %w", err)
	}
	if err := json.Unmarshal(quizScores, &s.QuizScores); err != nil {
		return nil, fmt.Errorf("unmarshaling quiz scores: %w", err)
	}
	return &s, nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyScoresIfNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
