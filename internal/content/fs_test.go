package content_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edubot/edubot/internal/content"
)

const cellsYAML = `topic: Cells
description: Basic cell biology
subtopics:
  - title: Cell Structure
    body: Every cell has a membrane. The membrane controls what enters and leaves.
  - title: Cell Division
    body: Cells divide by mitosis. Mitosis produces two identical daughter cells.
`

func writeTopic(t *testing.T, dir, name, data string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
		t.Fatalf("write topic file: %v", err)
	}
}

func newProvider(t *testing.T, files map[string]string) *content.FSProvider {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		writeTopic(t, dir, name, data)
	}
	p, err := content.NewFSProvider(dir)
	if err != nil {
		t.Fatalf("NewFSProvider() error = %v", err)
	}
	return p
}

func TestFSProvider_Subtopics(t *testing.T) {
	p := newProvider(t, map[string]string{"cells.yaml": cellsYAML})

	subtopics, err := p.Subtopics(t.Context(), "Cells")
	if err != nil {
		t.Fatalf("Subtopics() error = %v", err)
	}
	if len(subtopics) != 2 {
		t.Fatalf("len(subtopics) = %d, want 2", len(subtopics))
	}
	if subtopics[0].Title != "Cell Structure" {
		t.Errorf("subtopics[0].Title = %q", subtopics[0].Title)
	}
}

func TestFSProvider_TopicLookupIsCaseInsensitive(t *testing.T) {
	p := newProvider(t, map[string]string{"cells.yaml": cellsYAML})

	subtopics, err := p.Subtopics(t.Context(), "  cells ")
	if err != nil {
		t.Fatalf("Subtopics() error = %v", err)
	}
	if len(subtopics) != 2 {
		t.Errorf("len(subtopics) = %d, want 2", len(subtopics))
	}
}

func TestFSProvider_UnknownTopic(t *testing.T) {
	p := newProvider(t, map[string]string{"cells.yaml": cellsYAML})

	subtopics, err := p.Subtopics(t.Context(), "Astrophysics")
	if err != nil {
		t.Fatalf("Subtopics() error = %v", err)
	}
	if len(subtopics) != 0 {
		t.Errorf("len(subtopics) = %d, want 0", len(subtopics))
	}
}

func TestFSProvider_SkipsInvalidFiles(t *testing.T) {
	p := newProvider(t, map[string]string{
		"cells.yaml": cellsYAML,
		"broken.yaml": `topic: Broken
subtopics:
  - title: ""
    body: ""
`,
		"not-a-topic.yaml": `some: other yaml`,
	})

	topics, err := p.Topics(t.Context())
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("len(topics) = %d, want 1 (invalid files skipped)", len(topics))
	}
	if topics[0].Name != "Cells" {
		t.Errorf("topics[0].Name = %q, want Cells", topics[0].Name)
	}
}

func TestFSProvider_Search(t *testing.T) {
	p := newProvider(t, map[string]string{"cells.yaml": cellsYAML})

	passages, err := p.Search(t.Context(), "Cells", "what is mitosis", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) == 0 {
		t.Fatal("Search() returned no passages for matching query")
	}
	if !strings.Contains(strings.ToLower(passages[0].Text), "mitosis") {
		t.Errorf("top passage %q should mention mitosis", passages[0].Text)
	}
}

func TestFSProvider_SearchLimit(t *testing.T) {
	p := newProvider(t, map[string]string{"cells.yaml": cellsYAML})

	passages, err := p.Search(t.Context(), "Cells", "cell", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) > 1 {
		t.Errorf("len(passages) = %d, want <= 1", len(passages))
	}
}

func TestFSProvider_ChunksLongBodies(t *testing.T) {
	long := strings.Repeat("The nucleus stores genetic material. ", 40)
	p := newProvider(t, map[string]string{
		"nucleus.yaml": "topic: Nucleus\nsubtopics:\n  - title: Overview\n    body: " + long,
	})

	topics, err := p.Topics(t.Context())
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("len(topics) = %d, want 1", len(topics))
	}
	if topics[0].Chunks < 2 {
		t.Errorf("Chunks = %d, want >= 2 for a long body", topics[0].Chunks)
	}
}
