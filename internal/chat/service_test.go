package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/muse/internal/models"
	"github.com/xaenox/muse/internal/retriever"
	"github.com/xaenox/muse/internal/store"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	reply       string
	err         error
	lastHistory []*models.ChatMessage
	lastTopics  []string
}

func (f *fakeGenerator) Generate(_ context.Context, history []*models.ChatMessage, _ string, topics []string) (string, error) {
	f.lastHistory = history
	f.lastTopics = topics
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeRetriever struct {
	result retriever.Result
	err    error
	delay  time.Duration
	calls  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) (retriever.Result, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result, f.err
}

type fakeSearcher struct {
	suggestions []models.IdeaSuggestion
	calls       int
}

func (f *fakeSearcher) Search(_ context.Context, _ []string, _ int) []models.IdeaSuggestion {
	f.calls++
	return f.suggestions
}

func newTestService(opts ...Option) (*Service, *fakeGenerator, store.SessionStore) {
	gen := &fakeGenerator{reply: "let's explore that"}
	st := store.NewMemoryStore()
	return NewService(st, gen, zap.NewNop(), opts...), gen, st
}

func TestSendMessageCreatesSession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, &models.ChatRequest{Message: "hello there"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "let's explore that", resp.Content)
	assert.GreaterOrEqual(t, resp.LatencyMS, int64(0))

	// Follow-up with the returned id reuses the session.
	followUp, err := svc.SendMessage(ctx, &models.ChatRequest{SessionID: resp.SessionID, Message: "more"})
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, followUp.SessionID)

	list, err := svc.ListSessions(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestSendMessageUnknownSession(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.SendMessage(context.Background(), &models.ChatRequest{
		SessionID: "does-not-exist",
		Message:   "hello",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, &models.ChatRequest{Message: ""})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, &models.ChatRequest{Message: "hi", ContextWindow: -1})
	assert.ErrorIs(t, err, ErrInvalidContextWindow)

	// Validation failures must not leave sessions behind.
	list, err := svc.ListSessions(ctx, "", false)
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestSendMessageStoresInterleavedTurns(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	const turns = 3
	var sessionID string
	for i := 0; i < turns; i++ {
		resp, err := svc.SendMessage(ctx, &models.ChatRequest{SessionID: sessionID, Message: "turn"})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}

	history, err := svc.SessionHistory(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2*turns)
	assert.Equal(t, 2*turns, history.Session.MessageCount)
	for i, msg := range history.Messages {
		if i%2 == 0 {
			assert.Equal(t, models.RoleUser, msg.Role)
		} else {
			assert.Equal(t, models.RoleAssistant, msg.Role)
		}
	}
}

func TestSendMessageConcurrentWithReaders(t *testing.T) {
	// Session reads served while a turn is in flight must see a stable
	// snapshot, not fields mid-write. Run with the race detector.
	retr := &fakeRetriever{result: retriever.Result{Confidence: 0.9}, delay: time.Millisecond}
	svc, _, _ := newTestService(WithRetriever(retr))
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	const turns = 20
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < turns; i++ {
			_, err := svc.SendMessage(ctx, &models.ChatRequest{
				SessionID: session.ID,
				Message:   fmt.Sprintf("liquidity turn %d", i),
			})
			assert.NoError(t, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			history, err := svc.SessionHistory(ctx, session.ID)
			assert.NoError(t, err)
			_, err = json.Marshal(history.Session)
			assert.NoError(t, err)

			list, err := svc.ListSessions(ctx, "", true)
			assert.NoError(t, err)
			for _, s := range list.Sessions {
				_ = len(s.Topics)
			}
		}
	}()

	wg.Wait()

	final, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*turns, final.MessageCount)
	assert.Contains(t, final.Topics, "liquidity")
}

func TestSendMessagePriorContextExcludesCurrentTurn(t *testing.T) {
	svc, gen, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, &models.ChatRequest{Message: "first"})
	require.NoError(t, err)
	assert.Empty(t, gen.lastHistory, "first turn has no prior context")

	_, err = svc.SendMessage(ctx, &models.ChatRequest{SessionID: resp.SessionID, Message: "second"})
	require.NoError(t, err)
	require.Len(t, gen.lastHistory, 2)
	assert.Equal(t, "first", gen.lastHistory[0].Content)
	assert.Equal(t, models.RoleAssistant, gen.lastHistory[1].Role)
}

func TestSendMessageContextWindowLimitsHistory(t *testing.T) {
	svc, gen, _ := newTestService()
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 4; i++ {
		resp, err := svc.SendMessage(ctx, &models.ChatRequest{SessionID: sessionID, Message: "turn"})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}

	_, err := svc.SendMessage(ctx, &models.ChatRequest{SessionID: sessionID, Message: "final", ContextWindow: 3})
	require.NoError(t, err)
	// Last 3 messages minus the just-appended user turn.
	assert.Len(t, gen.lastHistory, 2)
}

func TestSendMessageTopicTracking(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, &models.ChatRequest{
		Message: "thoughts on liquidity and treasury ops",
		Topics:  []string{"payments"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"payments", "liquidity", "treasury"}, resp.TopicsDiscussed)

	// A repeated topic is not re-added, first-seen order is preserved.
	_, err = svc.SendMessage(ctx, &models.ChatRequest{
		SessionID: resp.SessionID,
		Message:   "more about liquidity and stablecoin design",
	})
	require.NoError(t, err)

	session, err := svc.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"payments", "liquidity", "treasury", "stablecoin"}, session.Topics)
	assert.Equal(t, 2.0, session.TopicWeights["liquidity"])
	assert.Equal(t, 1.0, session.TopicWeights["payments"])
}

func TestSendMessageConfidenceSnapshotAndResolve(t *testing.T) {
	retr := &fakeRetriever{result: retriever.Result{Confidence: 0.95}}
	svc, _, st := newTestService(WithRetriever(retr))
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, &models.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, resp.ContextAvailable)
	assert.Equal(t, 0.95, resp.ContextConfidence)

	history, err := st.SessionHistory(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	// User message snapshots the pre-turn confidence; assistant message
	// carries the resolved one.
	assert.Equal(t, models.DefaultContextConfidence, history.Messages[0].ContextConfidence)
	assert.Equal(t, 0.95, history.Messages[1].ContextConfidence)
	assert.Equal(t, 0.95, history.Session.ContextConfidence)
}

func TestSendMessageRetrieverFailureDegradesSoftly(t *testing.T) {
	retr := &fakeRetriever{err: retriever.ErrUnavailable}
	svc, _, _ := newTestService(WithRetriever(retr))

	resp, err := svc.SendMessage(context.Background(), &models.ChatRequest{Message: "hello"})
	require.NoError(t, err, "retriever failure must not fail the turn")
	assert.False(t, resp.ContextAvailable)
	assert.Equal(t, models.DefaultContextConfidence, resp.ContextConfidence)
	assert.Equal(t, 1, retr.calls)
}

func TestSendMessageGeneratorFailureIsHard(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	st := store.NewMemoryStore()
	svc := NewService(st, gen, zap.NewNop())

	_, err := svc.SendMessage(context.Background(), &models.ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageIdeaSearchOnlyWhenRequested(t *testing.T) {
	searcher := &fakeSearcher{suggestions: []models.IdeaSuggestion{
		{IdeaID: "idea-1", Title: "Tokenized treasury", Composite: 0.9},
	}}
	svc, _, st := newTestService(WithSearcher(searcher, 5))
	ctx := context.Background()

	resp, err := svc.SendMessage(ctx, &models.ChatRequest{Message: "treasury", IncludeIdeas: false})
	require.NoError(t, err)
	assert.Empty(t, resp.Ideas)
	assert.Zero(t, searcher.calls)

	resp, err = svc.SendMessage(ctx, &models.ChatRequest{SessionID: resp.SessionID, Message: "treasury", IncludeIdeas: true})
	require.NoError(t, err)
	require.Len(t, resp.Ideas, 1)
	assert.Equal(t, "idea-1", resp.Ideas[0].IdeaID)

	history, err := st.SessionHistory(ctx, resp.SessionID)
	require.NoError(t, err)
	last := history.Messages[len(history.Messages)-1]
	assert.Equal(t, []string{"idea-1"}, last.IdeaRefs)
}

func TestSubmitFeedbackCounters(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		name          string
		kind          models.FeedbackType
		wantGenerated int
		wantAccepted  int
		wantRejected  int
	}{
		{"accept", models.FeedbackAccept, 1, 1, 0},
		{"reject", models.FeedbackReject, 2, 1, 1},
		{"flag leaves counters alone", models.FeedbackFlag, 2, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := svc.SubmitFeedback(ctx, &models.FeedbackRequest{
				SessionID:    session.ID,
				IdeaID:       "idea-1",
				FeedbackType: tt.kind,
			})
			require.True(t, resp.Success)

			got, err := svc.GetSession(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGenerated, got.IdeasGenerated)
			assert.Equal(t, tt.wantAccepted, got.IdeasAccepted)
			assert.Equal(t, tt.wantRejected, got.IdeasRejected)
		})
	}
}

func TestSubmitFeedbackUnknownSession(t *testing.T) {
	svc, _, _ := newTestService()

	resp := svc.SubmitFeedback(context.Background(), &models.FeedbackRequest{
		SessionID:    "missing",
		IdeaID:       "idea-1",
		FeedbackType: models.FeedbackAccept,
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "not found")
}

func TestCloseSession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, svc.CloseSession(ctx, session.ID))

	active, err := svc.ListSessions(ctx, "", true)
	require.NoError(t, err)
	assert.Zero(t, active.Total)

	// Closed sessions stay queryable.
	history, err := svc.SessionHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, history.Session.IsActive)

	assert.ErrorIs(t, svc.CloseSession(ctx, "missing"), ErrSessionNotFound)
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		explicit []string
		want     []string
	}{
		{
			name:    "vocabulary match is case-insensitive",
			message: "What about TREASURY and Stablecoin design?",
			want:    []string{"treasury", "stablecoin"},
		},
		{
			name:     "explicit topics come first",
			message:  "exploring liquidity pools",
			explicit: []string{"defi"},
			want:     []string{"defi", "liquidity"},
		},
		{
			name:     "duplicates are dropped",
			message:  "AI and more AI",
			explicit: []string{"AI"},
			want:     []string{"AI"},
		},
		{
			name:    "no matches",
			message: "a gardening question",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTopics(tt.message, tt.explicit))
		})
	}
}
