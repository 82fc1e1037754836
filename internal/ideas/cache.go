package ideas

import (
	"context"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xaenox/muse/internal/models"
	"go.uber.org/zap"
)

// Searcher is the idea-search collaborator used by the chat layer. An
// empty result is a valid answer.
type Searcher interface {
	Search(ctx context.Context, topics []string, limit int) []models.IdeaSuggestion
}

// ScoredIdea pairs an idea with the score it was admitted with.
type ScoredIdea struct {
	Idea  *models.Idea     `json:"idea"`
	Score models.IdeaScore `json:"score"`
}

// Cache holds recently scored ideas with expiration and answers topic
// searches against them.
type Cache struct {
	ideas  *gocache.Cache
	logger *zap.Logger
}

func NewCache(ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		ideas:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Put admits a scored idea for the configured TTL.
func (c *Cache) Put(idea *models.Idea, score models.IdeaScore) {
	c.ideas.Set(idea.ID, ScoredIdea{Idea: idea, Score: score}, gocache.DefaultExpiration)
}

// Get returns a cached idea by identifier.
func (c *Cache) Get(id string) (ScoredIdea, bool) {
	v, ok := c.ideas.Get(id)
	if !ok {
		return ScoredIdea{}, false
	}
	return v.(ScoredIdea), true
}

// Recent returns cached ideas ordered by composite score, best first.
func (c *Cache) Recent(limit int) []ScoredIdea {
	items := c.ideas.Items()
	out := make([]ScoredIdea, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(ScoredIdea))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Score.Composite > out[j].Score.Composite
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search returns suggestions whose title or content mentions any of the
// given topics, ranked by composite score.
func (c *Cache) Search(_ context.Context, topics []string, limit int) []models.IdeaSuggestion {
	if len(topics) == 0 {
		return nil
	}

	matched := make([]ScoredIdea, 0)
	for _, item := range c.ideas.Items() {
		scored := item.Object.(ScoredIdea)
		haystack := strings.ToLower(scored.Idea.Title + " " + scored.Idea.Content)
		for _, topic := range topics {
			if topic != "" && strings.Contains(haystack, strings.ToLower(topic)) {
				matched = append(matched, scored)
				break
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Score.Composite > matched[j].Score.Composite
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	suggestions := make([]models.IdeaSuggestion, 0, len(matched))
	for _, scored := range matched {
		summary := scored.Idea.Content
		if len(summary) > 200 {
			summary = summary[:200]
		}
		suggestions = append(suggestions, models.IdeaSuggestion{
			IdeaID:    scored.Idea.ID,
			Title:     scored.Idea.Title,
			Summary:   summary,
			Composite: scored.Score.Composite,
		})
	}

	c.logger.Debug("idea search",
		zap.Strings("topics", topics),
		zap.Int("matches", len(suggestions)))

	return suggestions
}
