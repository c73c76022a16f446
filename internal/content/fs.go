package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// maxChunkLen bounds passage size; longer sub-topic bodies are split on
// sentence boundaries into roughly this many characters.
const maxChunkLen = 400

// topicSchema validates topic files before they are accepted into the
// catalog, so a malformed file is skipped instead of producing half-empty
// sessions later.
const topicSchema = `{
	"type": "object",
	"required": ["topic", "subtopics"],
	"properties": {
		"topic": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"subtopics": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["title", "body"],
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"body": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// topicFile is the on-disk YAML shape.
type topicFile struct {
	Topic       string     `yaml:"topic"`
	Description string     `yaml:"description"`
	Subtopics   []Subtopic `yaml:"subtopics"`
}

type topicEntry struct {
	name        string // display name as written in the file
	description string
	subtopics   []Subtopic
	chunks      []Passage
}

// FSProvider loads topic content from YAML files under a root directory and
// serves it from memory.
type FSProvider struct {
	rootDir string
	topics  map[string]topicEntry
	mu      sync.RWMutex
}

// NewFSProvider creates a provider and loads all topic files under rootDir.
func NewFSProvider(rootDir string) (*FSProvider, error) {
	p := &FSProvider{
		rootDir: rootDir,
		topics:  make(map[string]topicEntry),
	}

	if err := p.loadAll(); err != nil {
		return nil, fmt.Errorf("loading content: %w", err)
	}

	slog.Info("content loaded", "topics", len(p.topics))
	return p, nil
}

// Subtopics implements Provider.
func (p *FSProvider) Subtopics(_ context.Context, topic string) ([]Subtopic, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.topics[normalizeTopic(topic)]
	if !ok {
		return nil, nil
	}
	out := make([]Subtopic, len(entry.subtopics))
	copy(out, entry.subtopics)
	return out, nil
}

// Search implements Provider with term-overlap ranking over the topic's
// chunks, falling back to substring matching when no term overlaps.
func (p *FSProvider) Search(_ context.Context, topic, query string, limit int) ([]Passage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.topics[normalizeTopic(topic)]
	if !ok || limit <= 0 {
		return nil, nil
	}

	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		passage Passage
		score   int
	}
	var hits []scored
	for _, chunk := range entry.chunks {
		lower := strings.ToLower(chunk.Text)
		score := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{chunk, score})
		}
	}

	if len(hits) == 0 && strings.TrimSpace(query) != "" {
		needle := strings.ToLower(strings.TrimSpace(query))
		for _, chunk := range entry.chunks {
			if strings.Contains(strings.ToLower(chunk.Text), needle) {
				hits = append(hits, scored{chunk, 1})
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Passage, len(hits))
	for i, h := range hits {
		out[i] = h.passage
	}
	return out, nil
}

// Topics implements Provider.
func (p *FSProvider) Topics(_ context.Context) ([]TopicInfo, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]TopicInfo, 0, len(p.topics))
	for _, entry := range p.topics {
		desc := entry.description
		if desc == "" {
			desc = fmt.Sprintf("Study material with %d sections", len(entry.subtopics))
		}
		out = append(out, TopicInfo{
			Name:        entry.name,
			Description: desc,
			Subtopics:   len(entry.subtopics),
			Chunks:      len(entry.chunks),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *FSProvider) loadAll() error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(topicSchema))
	if err != nil {
		return fmt.Errorf("compile topic schema: %w", err)
	}

	return filepath.Walk(p.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}
		return p.loadTopic(path, schema)
	})
}

func (p *FSProvider) loadTopic(path string, schema *gojsonschema.Schema) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil || !result.Valid() {
		slog.Warn("skipping topic file failing schema validation", "path", path, "error", err)
		return nil
	}

	var tf topicFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		slog.Warn("skipping unreadable topic file", "path", path, "error", err)
		return nil
	}
	if tf.Topic == "" {
		return nil
	}

	entry := topicEntry{
		name:        tf.Topic,
		description: tf.Description,
		subtopics:   tf.Subtopics,
		chunks:      chunkSubtopics(tf.Subtopics),
	}

	p.mu.Lock()
	p.topics[normalizeTopic(tf.Topic)] = entry
	p.mu.Unlock()

	return nil
}

// chunkSubtopics splits sub-topic bodies into search passages. Bodies over
// maxChunkLen are split on sentence boundaries.
func chunkSubtopics(subtopics []Subtopic) []Passage {
	var chunks []Passage
	for i, st := range subtopics {
		baseID := fmt.Sprintf("%d-%s", i+1, slugify(st.Title))
		if len(st.Body) <= maxChunkLen+100 {
			chunks = append(chunks, Passage{ID: baseID, Text: st.Body})
			continue
		}

		sentences := strings.SplitAfter(st.Body, ". ")
		var current strings.Builder
		part := 0
		flush := func() {
			text := strings.TrimSpace(current.String())
			if text == "" {
				return
			}
			part++
			chunks = append(chunks, Passage{
				ID:   fmt.Sprintf("%s-part-%d", baseID, part),
				Text: text,
			})
			current.Reset()
		}
		for _, sentence := range sentences {
			if current.Len()+len(sentence) > maxChunkLen {
				flush()
			}
			current.WriteString(sentence)
		}
		flush()
	}
	return chunks
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}
