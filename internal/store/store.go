package store

import (
	"context"
	"errors"

	"github.com/xaenox/muse/internal/models"
)

// ErrNotFound is returned when a session identifier is unknown.
var ErrNotFound = errors.New("session not found")

// SessionStore owns all chat sessions and messages. Implementations must
// be safe for concurrent use across sessions; turn-level serialization for
// a single session is the orchestrator's job.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	UpdateSession(ctx context.Context, session *models.ChatSession) error
	ListSessions(ctx context.Context, userID string, activeOnly bool) (*models.SessionList, error)
	AppendMessage(ctx context.Context, message *models.ChatMessage) error
	SessionHistory(ctx context.Context, sessionID string) (*models.SessionHistory, error)
	Close() error
}
