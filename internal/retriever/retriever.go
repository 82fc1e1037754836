package retriever

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the context backend cannot answer. The
// orchestrator falls back to the session's last known confidence.
var ErrUnavailable = errors.New("context retrieval unavailable")

// Result carries the confidence update and optional supporting context
// returned by the backend.
type Result struct {
	Confidence float64
	Context    string
}

// Retriever is the optional context-retrieval collaborator. Its failure is
// never fatal to a chat turn.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (Result, error)
}

// Unavailable is the stand-in used until a context backend exists.
type Unavailable struct{}

func (Unavailable) Retrieve(_ context.Context, _ string) (Result, error) {
	return Result{}, ErrUnavailable
}
