package flow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/edubot/edubot/internal/flow"
	"github.com/edubot/edubot/internal/platform/database"
)

// startPostgres spins up a disposable PostgreSQL container and returns a
// connected store. Skipped in -short runs.
func startPostgres(t *testing.T) *flow.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("edubot"),
		tcpostgres.WithUsername("edubot"),
		tcpostgres.WithPassword("edubot"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	db, err := database.New(ctx, database.Config{URL: url, MaxConns: 4, MinConns: 1})
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(db.Close)

	store := flow.NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s := &flow.Session{
		ID:               "pg-1",
		StudentID:        "student-1",
		Topic:            "Biology",
		StartedAt:        now,
		UpdatedAt:        now,
		Stage:            flow.StageQuestion,
		SubtopicIndex:    1,
		ExplanationStep:  3,
		WaitingForAnswer: true,
		CurrentQuestion:  "What is mitosis?",
		ConceptsLearned:  []string{"Cell Structure"},
		ConceptScores:    []float64{0.8},
		QuizScores:       []float64{0.6},
		QuizFrequency:    4,
		MaxConversations: 30,
	}
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 2; i++ {
		turn := flow.Turn{Number: i, UserText: "hi", AssistantText: "reply", Stage: flow.StageLearning, Timestamp: now}
		if err := store.AppendTurn(ctx, "pg-1", turn); err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}

	got, err := store.Get(ctx, "pg-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stage != flow.StageQuestion || !got.WaitingForAnswer || got.CurrentQuestion != "What is mitosis?" {
		t.Errorf("pending interaction lost: %+v", got)
	}
	if got.SubtopicIndex != 1 || got.ExplanationStep != 3 {
		t.Errorf("progress cursor lost: index %d step %d", got.SubtopicIndex, got.ExplanationStep)
	}
	if len(got.ConceptsLearned) != 1 || len(got.ConceptScores) != 1 || len(got.QuizScores) != 1 {
		t.Errorf("score arrays lost: %+v", got)
	}
	if len(got.History) != 2 {
		t.Errorf("history length = %d, want 2", len(got.History))
	}
	if err := got.Validate(); err != nil {
		t.Errorf("loaded session invalid: %v", err)
	}

	// Saving an updated snapshot overwrites scalar state, not the turns.
	got.TotalInteractions = 5
	got.WaitingForAnswer = false
	got.CurrentQuestion = ""
	got.Stage = flow.StageFeedback
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved, err := store.Get(ctx, "pg-1")
	if err != nil {
		t.Fatalf("Get after save: %v", err)
	}
	if saved.TotalInteractions != 5 || saved.Stage != flow.StageFeedback {
		t.Errorf("save did not stick: %+v", saved)
	}
	if len(saved.History) != 2 {
		t.Errorf("save clobbered history: %d turns", len(saved.History))
	}
}

func TestPostgresStoreDuplicateTurnIsIdempotent(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Create(ctx, testSession("pg-dup", "student-1", now)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	turn := flow.Turn{Number: 1, AssistantText: "reply", Stage: flow.StageLearning, Timestamp: now}
	if err := store.AppendTurn(ctx, "pg-dup", turn); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := store.AppendTurn(ctx, "pg-dup", turn); err != nil {
		t.Fatalf("replayed append: %v", err)
	}

	got, err := store.Get(ctx, "pg-dup")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.History) != 1 {
		t.Errorf("replayed turn duplicated history: %d turns", len(got.History))
	}
}

func TestPostgresStoreGetUnknown(t *testing.T) {
	store := startPostgres(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, flow.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestPostgresStoreListByStudent(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, id := range []string{"list-a", "list-b", "list-c"} {
		s := testSession(id, "student-7", base.Add(time.Duration(i)*time.Minute))
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	got, err := store.ListByStudent(ctx, "student-7", 2)
	if err != nil {
		t.Fatalf("ListByStudent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(got))
	}
	if got[0].ID != "list-c" || got[1].ID != "list-b" {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
}
