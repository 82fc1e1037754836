package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Topics   TopicsFile     `mapstructure:"topics"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type ChatConfig struct {
	ContextWindow   int `mapstructure:"context_window"`
	IdeaCacheTTLMin int `mapstructure:"idea_cache_ttl_minutes"`
	IdeaSearchLimit int `mapstructure:"idea_search_limit"`
}

type IngestConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRSSEntries  int `mapstructure:"max_rss_entries"`
}

type TopicsFile struct {
	Path string `mapstructure:"path"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("chat.context_window", 10)
	v.SetDefault("chat.idea_cache_ttl_minutes", 1440)
	v.SetDefault("chat.idea_search_limit", 5)
	v.SetDefault("ingest.timeout_seconds", 30)
	v.SetDefault("ingest.max_rss_entries", 10)
	v.SetDefault("topics.path", "topics.yaml")

	// Enable environment variable support
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Environment overrides for secrets
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if config.Telegram.Enabled && config.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram gateway enabled but no token configured")
	}

	return &config, nil
}
