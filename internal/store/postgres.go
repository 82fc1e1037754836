package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/xaenox/muse/internal/models"
	"github.com/xaenox/muse/pkg/config"
)

//go:embed migrations.sql
var migrations embed.FS

// PostgresStore is the durable SessionStore. It carries the same contract
// as MemoryStore so orchestration code never sees the difference.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	session := models.NewChatSession(userID)

	query := `
		INSERT INTO chat_sessions (id, user_id, created_at, updated_at, last_message_at, is_active, context_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.CreatedAt, session.UpdatedAt,
		session.LastMessageAt, session.IsActive, session.ContextConfidence)
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

const sessionColumns = `id, user_id, created_at, updated_at, last_message_at, is_active,
	message_count, topics, topic_weights, ideas_generated, ideas_accepted, ideas_rejected, context_confidence`

func scanSession(row interface{ Scan(...any) error }) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	var weights []byte
	err := row.Scan(
		&session.ID, &session.UserID, &session.CreatedAt, &session.UpdatedAt,
		&session.LastMessageAt, &session.IsActive, &session.MessageCount,
		pq.Array(&session.Topics), &weights, &session.IdeasGenerated,
		&session.IdeasAccepted, &session.IdeasRejected, &session.ContextConfidence,
	)
	if err != nil {
		return nil, err
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &session.TopicWeights); err != nil {
			return nil, fmt.Errorf("error decoding topic weights: %w", err)
		}
	}
	if session.TopicWeights == nil {
		session.TopicWeights = map[string]float64{}
	}
	if session.Topics == nil {
		session.Topics = []string{}
	}
	return session, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.ChatSession) error {
	weights, err := json.Marshal(session.TopicWeights)
	if err != nil {
		return fmt.Errorf("error encoding topic weights: %w", err)
	}

	query := `
		UPDATE chat_sessions
		SET updated_at = $2, last_message_at = $3, is_active = $4, message_count = $5,
		    topics = $6, topic_weights = $7, ideas_generated = $8, ideas_accepted = $9,
		    ideas_rejected = $10, context_confidence = $11
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		session.ID, session.UpdatedAt, session.LastMessageAt, session.IsActive,
		session.MessageCount, pq.Array(session.Topics), weights,
		session.IdeasGenerated, session.IdeasAccepted, session.IdeasRejected,
		session.ContextConfidence)
	if err != nil {
		return fmt.Errorf("error updating session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string, activeOnly bool) (*models.SessionList, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE ($1 = '' OR user_id = $1)`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.ChatSession, 0)
	activeCount := 0
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}
		if session.IsActive {
			activeCount++
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return &models.SessionList{
		Sessions:    sessions,
		Total:       len(sessions),
		ActiveCount: activeCount,
	}, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, message *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, session_id, role, content, idea_refs, context_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		message.ID, message.SessionID, string(message.Role), message.Content,
		pq.Array(message.IdeaRefs), message.ContextConfidence, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending message: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionHistory(ctx context.Context, sessionID string) (*models.SessionHistory, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, session_id, role, content, idea_refs, context_confidence, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.ChatMessage, 0)
	seen := make(map[string]struct{})
	refs := make([]string, 0)
	for rows.Next() {
		msg := &models.ChatMessage{}
		var role string
		err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content,
			pq.Array(&msg.IdeaRefs), &msg.ContextConfidence, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.Role = models.MessageRole(role)
		messages = append(messages, msg)

		for _, ref := range msg.IdeaRefs {
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				refs = append(refs, ref)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return &models.SessionHistory{
		Session:         session,
		Messages:        messages,
		IdeasReferenced: refs,
	}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
