package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies where an idea came from.
type SourceType string

const (
	SourceURL     SourceType = "url"
	SourceRSS     SourceType = "rss"
	SourceYouTube SourceType = "youtube"
	SourceManual  SourceType = "manual"
)

// Idea is a discrete unit of ingested or manually submitted content.
// Immutable once scored.
type Idea struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	SourceType SourceType `json:"source_type"`
	SourceURL  string     `json:"source_url,omitempty"`
	SourceName string     `json:"source_name,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	WordCount  int        `json:"word_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewIdea creates an idea with a generated identifier. A zero word count is
// derived from the content.
func NewIdea(title, content string, source SourceType) *Idea {
	return &Idea{
		ID:         uuid.New().String(),
		Title:      title,
		Content:    content,
		SourceType: source,
		WordCount:  len(strings.Fields(content)),
		CreatedAt:  time.Now(),
	}
}

// IdeaScore holds the component and composite scores for one idea.
// Created once per idea, never mutated.
type IdeaScore struct {
	IdeaID     string  `json:"idea_id"`
	Relevance  float64 `json:"relevance_score"`
	Novelty    float64 `json:"novelty_score"`
	Topicality float64 `json:"topicality_score"`
	Composite  float64 `json:"composite_score"`
}

// IdeaSuggestion is a ranked search hit returned to the chat layer.
type IdeaSuggestion struct {
	IdeaID    string  `json:"idea_id"`
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Composite float64 `json:"composite_score"`
}
