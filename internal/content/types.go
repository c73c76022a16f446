// Package content supplies topic material to the flow controller: ordered
// sub-topics for staged explanation and ranked passages for answering
// side questions.
package content

import "context"

// Subtopic is one content unit within a topic, explained across several steps.
type Subtopic struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
}

// Passage is a ranked search result within a topic's content.
type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TopicInfo summarizes an available topic.
type TopicInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subtopics   int    `json:"subtopics"`
	Chunks      int    `json:"chunks"`
}

// Provider is the content-store contract the flow controller consumes.
type Provider interface {
	// Subtopics returns the ordered sub-topic list for a topic. An empty
	// slice (not an error) means the topic has no teachable content.
	Subtopics(ctx context.Context, topic string) ([]Subtopic, error)
	// Search returns up to limit passages relevant to the query within the
	// topic's content.
	Search(ctx context.Context, topic, query string, limit int) ([]Passage, error)
	// Topics lists all available topics.
	Topics(ctx context.Context) ([]TopicInfo, error)
}
