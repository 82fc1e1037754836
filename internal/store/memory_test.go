package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/muse/internal/models"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Zero(t, got.MessageCount)
	assert.True(t, got.IsActive)
	assert.Equal(t, models.DefaultContextConfidence, got.ContextConfidence)
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.CreateSession(ctx, "alice")
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "bob")
	require.NoError(t, err)
	closed, err := s.CreateSession(ctx, "alice")
	require.NoError(t, err)

	closed.IsActive = false
	require.NoError(t, s.UpdateSession(ctx, closed))

	all, err := s.ListSessions(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 2, all.ActiveCount)

	alice, err := s.ListSessions(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, 2, alice.Total)
	assert.Equal(t, 1, alice.ActiveCount)

	active, err := s.ListSessions(ctx, "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Total)
	for _, session := range active.Sessions {
		assert.True(t, session.IsActive)
		assert.NotEqual(t, closed.ID, session.ID)
	}
}

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "")
	require.NoError(t, err)

	first := models.NewChatMessage(session.ID, models.RoleUser, "hello", 0.8)
	second := models.NewChatMessage(session.ID, models.RoleAssistant, "hi there", 0.8)
	second.IdeaRefs = []string{"idea-1", "idea-2"}
	third := models.NewChatMessage(session.ID, models.RoleAssistant, "more", 0.8)
	third.IdeaRefs = []string{"idea-2"}

	for _, msg := range []*models.ChatMessage{first, second, third} {
		require.NoError(t, s.AppendMessage(ctx, msg))
	}

	history, err := s.SessionHistory(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, "hi there", history.Messages[1].Content)
	assert.ElementsMatch(t, []string{"idea-1", "idea-2"}, history.IdeasReferenced)
}

func TestMemoryStoreAppendToUnknownSession(t *testing.T) {
	s := NewMemoryStore()

	msg := models.NewChatMessage("nope", models.RoleUser, "hello", 0.8)
	err := s.AppendMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsIsolatedCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session, err := s.CreateSession(ctx, "")
	require.NoError(t, err)
	session.AddTopic("treasury")
	require.NoError(t, s.UpdateSession(ctx, session))

	// Mutating one read must not bleed into the store or other reads.
	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	got.MessageCount = 99
	got.AddTopic("liquidity")
	got.TopicWeights["treasury"] = 42

	fresh, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.MessageCount)
	assert.Equal(t, []string{"treasury"}, fresh.Topics)
	assert.Equal(t, 1.0, fresh.TopicWeights["treasury"])

	history, err := s.SessionHistory(ctx, session.ID)
	require.NoError(t, err)
	history.Session.IsActive = false

	listed, err := s.ListSessions(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, listed.Sessions, 1)
	assert.True(t, listed.Sessions[0].IsActive)
	listed.Sessions[0].RecordIdea(true)

	fresh, err = s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.IdeasGenerated)
}

func TestMemoryStoreUpdateUnknownSession(t *testing.T) {
	s := NewMemoryStore()

	session := models.NewChatSession("")
	err := s.UpdateSession(context.Background(), session)
	assert.ErrorIs(t, err, ErrNotFound)
}
