package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/edubot/edubot/internal/flow"
	"github.com/edubot/edubot/internal/report"
)

func seedStore(t *testing.T) *flow.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := flow.NewMemoryStore()
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s := &flow.Session{
		ID:                "sess-1",
		StudentID:         "student-1",
		Topic:             "cell biology",
		StartedAt:         started,
		UpdatedAt:         started.Add(12 * time.Minute),
		IsComplete:        true,
		Stage:             flow.StageComplete,
		ConceptsLearned:   []string{"Cell Structure", "Mitosis"},
		ConceptScores:     []float64{0.8, 1.0},
		TotalInteractions: 11,
	}
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	turns := []flow.Turn{
		{Number: 0, AssistantText: "Welcome!", Stage: flow.StageIntro, Timestamp: started},
		{Number: 1, UserText: "ok", AssistantText: "Cells are...", Stage: flow.StageLearning, Timestamp: started},
	}
	for _, turn := range turns {
		if err := store.AppendTurn(ctx, "sess-1", turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
	return store
}

func TestStudentWorkbook(t *testing.T) {
	gen := report.NewGenerator(seedStore(t))
	f, err := gen.StudentWorkbook(context.Background(), "student-1", 0)
	if err != nil {
		t.Fatalf("StudentWorkbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("Sessions", "B2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "Cell Biology" {
		t.Errorf("topic cell = %q, want title-cased Cell Biology", got)
	}

	score, err := f.GetCellValue("Sessions", "I2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if score != "90%" {
		t.Errorf("average score cell = %q, want 90%%", score)
	}

	tutor, err := f.GetCellValue("Transcript", "E2")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if tutor != "Welcome!" {
		t.Errorf("transcript cell = %q, want intro reply", tutor)
	}
}

func TestStudentWorkbookEmpty(t *testing.T) {
	gen := report.NewGenerator(flow.NewMemoryStore())
	f, err := gen.StudentWorkbook(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatalf("StudentWorkbook: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Sessions", "A1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if header != "Session" {
		t.Errorf("header = %q, want Session", header)
	}
}
