package scoring

import (
	"context"

	"github.com/xaenox/muse/internal/models"
)

// NoveltyEstimator scores how unlike previously seen ideas an idea is.
type NoveltyEstimator interface {
	EstimateNovelty(ctx context.Context, idea *models.Idea) (float64, error)
}

// TopicalityEstimator scores how timely an idea is.
type TopicalityEstimator interface {
	EstimateTopicality(ctx context.Context, idea *models.Idea) (float64, error)
}

// StaticNovelty is a stand-in until a semantic-similarity search against
// prior ideas exists. It is not a design choice, just the unimplemented
// capability made explicit.
type StaticNovelty struct {
	Value float64
}

func (e StaticNovelty) EstimateNovelty(_ context.Context, _ *models.Idea) (float64, error) {
	return e.Value, nil
}

// StaticTopicality is a stand-in until recency/trend analysis exists.
type StaticTopicality struct {
	Value float64
}

func (e StaticTopicality) EstimateTopicality(_ context.Context, _ *models.Idea) (float64, error) {
	return e.Value, nil
}

const (
	// DefaultNovelty is used until similarity search is wired in.
	DefaultNovelty = 0.8
	// DefaultTopicality is used until trend analysis is wired in.
	DefaultTopicality = 0.7
)
