package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole distinguishes user and assistant turns.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// FeedbackType is the kind of feedback a user can give on an idea.
type FeedbackType string

const (
	FeedbackAccept FeedbackType = "accept"
	FeedbackReject FeedbackType = "reject"
	FeedbackFlag   FeedbackType = "flag"
)

// ChatSession tracks one conversation and its aggregate counters.
// Sessions are never physically deleted; closing flips IsActive.
type ChatSession struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	LastMessageAt     time.Time          `json:"last_message_at"`
	IsActive          bool               `json:"is_active"`
	MessageCount      int                `json:"message_count"`
	Topics            []string           `json:"topics"`
	TopicWeights      map[string]float64 `json:"topic_weights,omitempty"`
	IdeasGenerated    int                `json:"ideas_generated"`
	IdeasAccepted     int                `json:"ideas_accepted"`
	IdeasRejected     int                `json:"ideas_rejected"`
	ContextConfidence float64            `json:"context_confidence"`
}

// DefaultContextConfidence is the confidence assigned to a fresh session
// before any context retrieval has answered.
const DefaultContextConfidence = 0.8

func NewChatSession(userID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:                uuid.New().String(),
		UserID:            userID,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastMessageAt:     now,
		IsActive:          true,
		Topics:            []string{},
		TopicWeights:      map[string]float64{},
		ContextConfidence: DefaultContextConfidence,
	}
}

// AddTopic appends a topic if not already present, preserving first-seen
// order, and bumps its weight accumulator.
func (s *ChatSession) AddTopic(topic string) {
	if s.TopicWeights == nil {
		s.TopicWeights = map[string]float64{}
	}
	if _, seen := s.TopicWeights[topic]; !seen {
		s.Topics = append(s.Topics, topic)
	}
	s.TopicWeights[topic]++
}

// Clone returns a deep copy sharing no mutable state with the receiver,
// so stores can hand out snapshots without exposing in-flight writes.
func (s *ChatSession) Clone() *ChatSession {
	clone := *s
	clone.Topics = append([]string(nil), s.Topics...)
	clone.TopicWeights = make(map[string]float64, len(s.TopicWeights))
	for topic, weight := range s.TopicWeights {
		clone.TopicWeights[topic] = weight
	}
	return &clone
}

// RecordIdea folds one accept/reject feedback into the counters.
func (s *ChatSession) RecordIdea(accepted bool) {
	s.IdeasGenerated++
	if accepted {
		s.IdeasAccepted++
	} else {
		s.IdeasRejected++
	}
}

// Touch refreshes the update and last-message timestamps.
func (s *ChatSession) Touch() {
	now := time.Now()
	s.UpdatedAt = now
	s.LastMessageAt = now
}

// ChatMessage is one turn in a session. Immutable once appended; ordering
// is append order.
type ChatMessage struct {
	ID                string      `json:"id"`
	SessionID         string      `json:"session_id"`
	Role              MessageRole `json:"role"`
	Content           string      `json:"content"`
	IdeaRefs          []string    `json:"idea_refs,omitempty"`
	ContextConfidence float64     `json:"context_confidence"`
	CreatedAt         time.Time   `json:"created_at"`
}

func NewChatMessage(sessionID string, role MessageRole, content string, confidence float64) *ChatMessage {
	return &ChatMessage{
		ID:                uuid.New().String(),
		SessionID:         sessionID,
		Role:              role,
		Content:           content,
		ContextConfidence: confidence,
		CreatedAt:         time.Now(),
	}
}

// ChatRequest is an inbound chat turn.
type ChatRequest struct {
	SessionID     string   `json:"session_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
	Message       string   `json:"message"`
	Topics        []string `json:"topics,omitempty"`
	ContextWindow int      `json:"context_window,omitempty"`
	IncludeIdeas  bool     `json:"include_ideas,omitempty"`
}

// ChatResponse is the structured result of one processed turn.
type ChatResponse struct {
	SessionID         string           `json:"session_id"`
	MessageID         string           `json:"message_id"`
	Content           string           `json:"content"`
	Ideas             []IdeaSuggestion `json:"ideas"`
	TopicsDiscussed   []string         `json:"topics_discussed"`
	ContextConfidence float64          `json:"context_confidence"`
	ContextAvailable  bool             `json:"context_available"`
	LatencyMS         int64            `json:"latency_ms"`
}

// FeedbackRequest records user feedback on an idea within a session.
type FeedbackRequest struct {
	SessionID    string       `json:"session_id"`
	IdeaID       string       `json:"idea_id"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Comment      string       `json:"comment,omitempty"`
}

// FeedbackResponse reports whether feedback was folded into the session.
type FeedbackResponse struct {
	Success           bool    `json:"success"`
	Message           string  `json:"message"`
	ContextConfidence float64 `json:"updated_context_confidence"`
}

// SessionList is the result of listing sessions with filters applied.
type SessionList struct {
	Sessions    []*ChatSession `json:"sessions"`
	Total       int            `json:"total"`
	ActiveCount int            `json:"active_count"`
}

// SessionHistory is a session with its full ordered message log and the
// distinct idea identifiers referenced across it.
type SessionHistory struct {
	Session         *ChatSession   `json:"session"`
	Messages        []*ChatMessage `json:"messages"`
	IdeasReferenced []string       `json:"ideas_referenced"`
}
