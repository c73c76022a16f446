// Package report renders a student's session history as an Excel workbook
// for teachers and parents.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/edubot/edubot/internal/flow"
)

const (
	sessionsSheet = "Sessions"
	turnsSheet    = "Transcript"
)

// Generator builds spreadsheet reports from the session store.
type Generator struct {
	store flow.Store
	title cases.Caser
}

func NewGenerator(store flow.Store) *Generator {
	return &Generator{
		store: store,
		title: cases.Title(language.English),
	}
}

// StudentWorkbook assembles a workbook with one overview row per session and
// a full transcript sheet. The caller owns the returned file and must close
// it.
func (g *Generator) StudentWorkbook(ctx context.Context, studentID string, limit int) (*excelize.File, error) {
	sessions, err := g.store.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions for report: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sessionsSheet); err != nil {
		return nil, fmt.Errorf("naming overview sheet: %w", err)
	}
	if _, err := f.NewSheet(turnsSheet); err != nil {
		return nil, fmt.Errorf("creating transcript sheet: %w", err)
	}

	if err := g.writeSessions(f, sessions); err != nil {
		return nil, err
	}
	if err := g.writeTranscript(f, sessions); err != nil {
		return nil, err
	}
	return f, nil
}

var sessionHeaders = []string{
	"Session", "Topic", "Started", "Duration (min)", "Stage", "Complete",
	"Interactions", "Concepts Learned", "Average Score", "Quizzes",
}

func (g *Generator) writeSessions(f *excelize.File, sessions []*flow.Session) error {
	if err := g.writeHeader(f, sessionsSheet, sessionHeaders); err != nil {
		return err
	}
	for i, s := range sessions {
		stats := s.ComputeStats(s.UpdatedAt)
		row := i + 2
		values := []any{
			s.ID,
			g.title.String(s.Topic),
			s.StartedAt.Format(time.RFC3339),
			fmt.Sprintf("%.1f", stats.DurationMinutes),
			string(s.Stage),
			s.IsComplete,
			stats.TotalInteractions,
			stats.ConceptsLearned,
			fmt.Sprintf("%.0f%%", stats.AverageScore*100),
			stats.QuizzesTaken,
		}
		if err := g.writeRow(f, sessionsSheet, row, values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sessionsSheet, "A", "C", 24); err != nil {
		return fmt.Errorf("sizing overview columns: %w", err)
	}
	return nil
}

var turnHeaders = []string{"Session", "Turn", "Stage", "Student", "Tutor"}

func (g *Generator) writeTranscript(f *excelize.File, sessions []*flow.Session) error {
	if err := g.writeHeader(f, turnsSheet, turnHeaders); err != nil {
		return err
	}
	row := 2
	for _, s := range sessions {
		for _, t := range s.History {
			values := []any{s.ID, t.Number, string(t.Stage), t.UserText, t.AssistantText}
			if err := g.writeRow(f, turnsSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetColWidth(turnsSheet, "D", "E", 60); err != nil {
		return fmt.Errorf("sizing transcript columns: %w", err)
	}
	return nil
}

func (g *Generator) writeHeader(f *excelize.File, sheet string, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header cell for %s: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("writing header %q: %w", h, err)
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling header row: %w", err)
	}
	return nil
}

func (g *Generator) writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", row, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("writing cell %s: %w", cell, err)
		}
	}
	return nil
}
