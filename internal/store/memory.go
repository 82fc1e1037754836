package store

import (
	"context"
	"sync"

	"github.com/xaenox/muse/internal/models"
)

// MemoryStore keeps sessions and messages in process memory. No eviction,
// no TTL; state lives as long as the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	messages map[string][]*models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]*models.ChatMessage),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, userID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := models.NewChatSession(userID)
	s.sessions[session.ID] = session
	s.messages[session.ID] = []*models.ChatMessage{}
	return session.Clone(), nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	// Callers mutate sessions across a turn; handing out the stored
	// pointer would expose those writes to concurrent readers.
	return session.Clone(), nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return ErrNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemoryStore) ListSessions(_ context.Context, userID string, activeOnly bool) (*models.SessionList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*models.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if userID != "" && session.UserID != userID {
			continue
		}
		if activeOnly && !session.IsActive {
			continue
		}
		sessions = append(sessions, session.Clone())
	}

	activeCount := 0
	for _, session := range sessions {
		if session.IsActive {
			activeCount++
		}
	}

	return &models.SessionList{
		Sessions:    sessions,
		Total:       len(sessions),
		ActiveCount: activeCount,
	}, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[message.SessionID]; !exists {
		return ErrNotFound
	}
	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

func (s *MemoryStore) SessionHistory(_ context.Context, sessionID string) (*models.SessionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}

	messages := append([]*models.ChatMessage(nil), s.messages[sessionID]...)

	// Distinct idea references across the session; order not guaranteed.
	seen := make(map[string]struct{})
	refs := make([]string, 0)
	for _, msg := range messages {
		for _, ref := range msg.IdeaRefs {
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				refs = append(refs, ref)
			}
		}
	}

	return &models.SessionHistory{
		Session:         session.Clone(),
		Messages:        messages,
		IdeasReferenced: refs,
	}, nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
