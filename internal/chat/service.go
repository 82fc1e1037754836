package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/muse/internal/generator"
	"github.com/xaenox/muse/internal/ideas"
	"github.com/xaenox/muse/internal/models"
	"github.com/xaenox/muse/internal/retriever"
	"github.com/xaenox/muse/internal/store"
	"go.uber.org/zap"
)

// DefaultContextWindow is the number of recent messages handed to the
// generator when the caller does not specify one.
const DefaultContextWindow = 10

var (
	// ErrSessionNotFound distinguishes a bad session reference from
	// server-side failures; surfaced to callers as a client error.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyMessage rejects blank turns before any state mutation.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrInvalidContextWindow rejects negative window sizes.
	ErrInvalidContextWindow = errors.New("context window must not be negative")
)

// Service orchestrates chat turns: session resolution, message bookkeeping,
// topic tracking, collaborator calls and feedback recording.
type Service struct {
	store         store.SessionStore
	generator     generator.Generator
	retriever     retriever.Retriever
	searcher      ideas.Searcher
	searchLimit   int
	defaultWindow int
	logger        *zap.Logger

	// Serializes turns per session; the store only guards map integrity,
	// not whole-turn read-modify-write cycles.
	locks sync.Map
}

// Option tweaks optional collaborators and settings.
type Option func(*Service)

// WithRetriever attaches the optional context-retrieval collaborator.
func WithRetriever(r retriever.Retriever) Option {
	return func(s *Service) { s.retriever = r }
}

// WithSearcher attaches the optional idea-search collaborator.
func WithSearcher(searcher ideas.Searcher, limit int) Option {
	return func(s *Service) {
		s.searcher = searcher
		s.searchLimit = limit
	}
}

// WithContextWindow overrides the default context window.
func WithContextWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultWindow = n
		}
	}
}

func NewService(sessionStore store.SessionStore, gen generator.Generator, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:         sessionStore,
		generator:     gen,
		defaultWindow: DefaultContextWindow,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreateSession starts a new session for an optional user.
func (s *Service) CreateSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	session, err := s.store.CreateSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("New session created", zap.String("session_id", session.ID))
	return session, nil
}

// GetSession fetches a session by identifier.
func (s *Service) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return session, err
}

// ListSessions lists sessions, optionally filtered by user and activity.
func (s *Service) ListSessions(ctx context.Context, userID string, activeOnly bool) (*models.SessionList, error) {
	return s.store.ListSessions(ctx, userID, activeOnly)
}

// SessionHistory returns a session with its ordered messages and the
// distinct idea references across them. Closed sessions stay queryable.
func (s *Service) SessionHistory(ctx context.Context, sessionID string) (*models.SessionHistory, error) {
	history, err := s.store.SessionHistory(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return history, err
}

// SendMessage processes one chat turn and returns the structured response.
func (s *Service) SendMessage(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	start := time.Now()

	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.ContextWindow < 0 {
		return nil, ErrInvalidContextWindow
	}
	window := req.ContextWindow
	if window == 0 {
		window = s.defaultWindow
	}

	// Resolve or create the session. An unknown identifier is a client
	// error, never a silent new session.
	var session *models.ChatSession
	var err error
	if req.SessionID != "" {
		mu := s.sessionLock(req.SessionID)
		mu.Lock()
		defer mu.Unlock()

		session, err = s.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
	} else {
		session, err = s.CreateSession(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		mu := s.sessionLock(session.ID)
		mu.Lock()
		defer mu.Unlock()
	}

	// User message snapshots the session's confidence before this turn
	// resolves a new one.
	userMessage := models.NewChatMessage(session.ID, models.RoleUser, req.Message, session.ContextConfidence)
	if err := s.store.AppendMessage(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}
	session.MessageCount++

	topics := extractTopics(req.Message, req.Topics)
	for _, topic := range topics {
		session.AddTopic(topic)
	}

	// Context retrieval is optional and degrades softly: on failure keep
	// the session's existing confidence and just log it.
	confidence := session.ContextConfidence
	contextAvailable := false
	if s.retriever != nil {
		result, err := s.retriever.Retrieve(ctx, req.Message)
		if err != nil {
			s.logger.Warn("Context retrieval unavailable, using cached context",
				zap.Error(err),
				zap.String("session_id", session.ID))
		} else {
			confidence = result.Confidence
			contextAvailable = true
		}
	}

	prior, err := s.priorContext(ctx, session.ID, window)
	if err != nil {
		return nil, err
	}

	content, err := s.generator.Generate(ctx, prior, req.Message, session.Topics)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	suggestions := []models.IdeaSuggestion{}
	if req.IncludeIdeas && s.searcher != nil {
		suggestions = s.searcher.Search(ctx, topics, s.searchLimit)
	}

	assistantMessage := models.NewChatMessage(session.ID, models.RoleAssistant, content, confidence)
	for _, suggestion := range suggestions {
		assistantMessage.IdeaRefs = append(assistantMessage.IdeaRefs, suggestion.IdeaID)
	}
	if err := s.store.AppendMessage(ctx, assistantMessage); err != nil {
		return nil, fmt.Errorf("failed to append assistant message: %w", err)
	}
	session.MessageCount++

	session.ContextConfidence = confidence
	session.Touch()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	latency := time.Since(start).Milliseconds()
	s.logger.Info("Message processed",
		zap.String("session_id", session.ID),
		zap.Int64("latency_ms", latency),
		zap.Int("ideas_count", len(suggestions)),
		zap.Float64("context_confidence", confidence))

	return &models.ChatResponse{
		SessionID:         session.ID,
		MessageID:         assistantMessage.ID,
		Content:           content,
		Ideas:             suggestions,
		TopicsDiscussed:   topics,
		ContextConfidence: confidence,
		ContextAvailable:  contextAvailable,
		LatencyMS:         latency,
	}, nil
}

// priorContext returns the last `window` messages minus the just-appended
// user message.
func (s *Service) priorContext(ctx context.Context, sessionID string, window int) ([]*models.ChatMessage, error) {
	history, err := s.store.SessionHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	messages := history.Messages
	if len(messages) > window {
		messages = messages[len(messages)-window:]
	}
	if len(messages) > 0 {
		messages = messages[:len(messages)-1]
	}
	return messages, nil
}

// SubmitFeedback folds accept/reject feedback into the session counters.
// A flag is acknowledged without touching any counter. An unknown session
// yields a failed result, not an error.
func (s *Service) SubmitFeedback(ctx context.Context, req *models.FeedbackRequest) *models.FeedbackResponse {
	mu := s.sessionLock(req.SessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.GetSession(ctx, req.SessionID)
	if err != nil {
		return &models.FeedbackResponse{
			Success: false,
			Message: fmt.Sprintf("Session %s not found", req.SessionID),
		}
	}

	switch req.FeedbackType {
	case models.FeedbackAccept:
		session.RecordIdea(true)
	case models.FeedbackReject:
		session.RecordIdea(false)
	case models.FeedbackFlag:
		// Flagged ideas are acknowledged but not counted.
	default:
		return &models.FeedbackResponse{
			Success: false,
			Message: fmt.Sprintf("Unknown feedback type %q", req.FeedbackType),
		}
	}

	if err := s.store.UpdateSession(ctx, session); err != nil {
		s.logger.Error("Failed to persist feedback",
			zap.Error(err),
			zap.String("session_id", session.ID))
		return &models.FeedbackResponse{
			Success: false,
			Message: "Failed to record feedback",
		}
	}

	s.logger.Info("Feedback recorded",
		zap.String("session_id", session.ID),
		zap.String("idea_id", req.IdeaID),
		zap.String("feedback_type", string(req.FeedbackType)))

	return &models.FeedbackResponse{
		Success:           true,
		Message:           "Feedback recorded successfully",
		ContextConfidence: session.ContextConfidence,
	}
}

// CloseSession deactivates a session. History remains queryable; the
// session just stops appearing in active-only listings.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	session.IsActive = false
	session.UpdatedAt = time.Now()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	s.logger.Info("Session closed", zap.String("session_id", sessionID))
	return nil
}
