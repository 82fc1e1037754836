package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Topic is a named cluster of keywords with a relative importance weight.
// Immutable after load.
type Topic struct {
	Name      string   `mapstructure:"name"`
	Keywords  []string `mapstructure:"keywords"`
	Weight    float64  `mapstructure:"weight"`
	Subtopics []string `mapstructure:"subtopics"`
}

// ScoringWeights holds the component weights and the pass threshold.
type ScoringWeights struct {
	NoveltyWeight    float64 `mapstructure:"novelty_weight"`
	TopicalityWeight float64 `mapstructure:"topicality_weight"`
	RelevanceWeight  float64 `mapstructure:"relevance_weight"`
	MinimumScore     float64 `mapstructure:"minimum_score"`
}

// TopicConfig is the full topic configuration loaded once at startup.
type TopicConfig struct {
	Primary   []Topic        `mapstructure:"-"`
	Secondary []Topic        `mapstructure:"-"`
	Exclude   []string       `mapstructure:"-"`
	Scoring   ScoringWeights `mapstructure:"-"`
}

// LoadTopics reads the topic file and validates it. A malformed
// configuration is a startup-fatal error.
func LoadTopics(path string) (*TopicConfig, error) {
	v := viper.New()

	v.SetDefault("scoring.novelty_weight", 0.4)
	v.SetDefault("scoring.topicality_weight", 0.3)
	v.SetDefault("scoring.relevance_weight", 0.3)
	v.SetDefault("scoring.minimum_score", 0.65)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read topics file: %w", err)
	}

	var cfg TopicConfig
	if err := v.UnmarshalKey("topics.primary", &cfg.Primary); err != nil {
		return nil, fmt.Errorf("failed to parse primary topics: %w", err)
	}
	if err := v.UnmarshalKey("topics.secondary", &cfg.Secondary); err != nil {
		return nil, fmt.Errorf("failed to parse secondary topics: %w", err)
	}
	if err := v.UnmarshalKey("topics.exclude", &cfg.Exclude); err != nil {
		return nil, fmt.Errorf("failed to parse excluded topics: %w", err)
	}

	// Per-key reads so the documented defaults apply when the file omits
	// a weight; UnmarshalKey would bypass them.
	cfg.Scoring = ScoringWeights{
		NoveltyWeight:    v.GetFloat64("scoring.novelty_weight"),
		TopicalityWeight: v.GetFloat64("scoring.topicality_weight"),
		RelevanceWeight:  v.GetFloat64("scoring.relevance_weight"),
		MinimumScore:     v.GetFloat64("scoring.minimum_score"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the scoring engine cannot safely use.
func (c *TopicConfig) Validate() error {
	if len(c.Primary) == 0 {
		return fmt.Errorf("topic config requires at least one primary topic")
	}
	for _, tier := range [][]Topic{c.Primary, c.Secondary} {
		for _, t := range tier {
			if t.Name == "" {
				return fmt.Errorf("topic with empty name")
			}
			if len(t.Keywords) == 0 {
				return fmt.Errorf("topic %q has no keywords", t.Name)
			}
			if t.Weight < 0 || t.Weight > 1 {
				return fmt.Errorf("topic %q weight %v out of range [0,1]", t.Name, t.Weight)
			}
		}
	}
	if c.Scoring.MinimumScore < 0 || c.Scoring.MinimumScore > 1 {
		return fmt.Errorf("minimum score %v out of range [0,1]", c.Scoring.MinimumScore)
	}
	if c.Scoring.NoveltyWeight < 0 || c.Scoring.TopicalityWeight < 0 || c.Scoring.RelevanceWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	return nil
}
