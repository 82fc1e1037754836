package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/muse/internal/models"
	"github.com/xaenox/muse/pkg/config"
	"go.uber.org/zap"
)

const (
	primaryShare   = 0.7
	secondaryShare = 0.3
)

// Engine computes relevance, novelty and topicality scores for ideas
// against the loaded topic configuration. It owns no state beyond the
// config and is safe for concurrent use.
type Engine struct {
	cfg        *config.TopicConfig
	novelty    NoveltyEstimator
	topicality TopicalityEstimator
	logger     *zap.Logger
}

func NewEngine(cfg *config.TopicConfig, novelty NoveltyEstimator, topicality TopicalityEstimator, logger *zap.Logger) *Engine {
	if novelty == nil {
		novelty = StaticNovelty{Value: DefaultNovelty}
	}
	if topicality == nil {
		topicality = StaticTopicality{Value: DefaultTopicality}
	}
	return &Engine{
		cfg:        cfg,
		novelty:    novelty,
		topicality: topicality,
		logger:     logger,
	}
}

// Score computes the component scores and their weighted composite for one
// idea. The composite is not clamped: weights summing past 1 can push it
// beyond 1.0, matching the configured linear combination.
func (e *Engine) Score(ctx context.Context, idea *models.Idea) (models.IdeaScore, error) {
	relevance := e.relevance(idea)

	novelty, err := e.novelty.EstimateNovelty(ctx, idea)
	if err != nil {
		return models.IdeaScore{}, fmt.Errorf("novelty estimation failed: %w", err)
	}

	topicality, err := e.topicality.EstimateTopicality(ctx, idea)
	if err != nil {
		return models.IdeaScore{}, fmt.Errorf("topicality estimation failed: %w", err)
	}

	w := e.cfg.Scoring
	composite := relevance*w.RelevanceWeight +
		novelty*w.NoveltyWeight +
		topicality*w.TopicalityWeight

	score := models.IdeaScore{
		IdeaID:     idea.ID,
		Relevance:  relevance,
		Novelty:    novelty,
		Topicality: topicality,
		Composite:  composite,
	}

	e.logger.Debug("idea scored",
		zap.String("idea_id", idea.ID),
		zap.Float64("relevance", relevance),
		zap.Float64("composite", composite))

	return score, nil
}

// PassesThreshold reports whether a score meets the configured minimum.
func (e *Engine) PassesThreshold(score models.IdeaScore) bool {
	return score.Composite >= e.cfg.Scoring.MinimumScore
}

func (e *Engine) relevance(idea *models.Idea) float64 {
	haystack := strings.ToLower(idea.Title + " " + idea.Content)

	// Excluded topics veto all matching.
	for _, excluded := range e.cfg.Exclude {
		if excluded != "" && strings.Contains(haystack, strings.ToLower(excluded)) {
			e.logger.Debug("idea contains excluded topic",
				zap.String("idea_id", idea.ID),
				zap.String("excluded", excluded))
			return 0
		}
	}

	primary := bestTopicScore(e.cfg.Primary, haystack)
	secondary := bestTopicScore(e.cfg.Secondary, haystack)

	relevance := primaryShare*primary + secondaryShare*secondary
	if relevance > 1 {
		relevance = 1
	}
	return relevance
}

// bestTopicScore returns the highest single topic contribution in a tier:
// each keyword counts at most once regardless of repetition.
func bestTopicScore(topics []config.Topic, haystack string) float64 {
	best := 0.0
	for _, topic := range topics {
		if len(topic.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, keyword := range topic.Keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		coverage := float64(hits) / float64(len(topic.Keywords))
		if coverage > 1 {
			coverage = 1
		}
		if score := coverage * topic.Weight; score > best {
			best = score
		}
	}
	return best
}
