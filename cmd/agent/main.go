package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/muse/internal/api"
	"github.com/xaenox/muse/internal/chat"
	"github.com/xaenox/muse/internal/generator"
	"github.com/xaenox/muse/internal/ideas"
	"github.com/xaenox/muse/internal/ingest"
	"github.com/xaenox/muse/internal/scoring"
	"github.com/xaenox/muse/internal/store"
	"github.com/xaenox/muse/internal/telegram"
	"github.com/xaenox/muse/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	topics, err := config.LoadTopics(cfg.Topics.Path)
	if err != nil {
		logger.Fatal("Failed to load topic config", zap.Error(err), zap.String("path", cfg.Topics.Path))
	}

	// Initialize session store
	var sessions store.SessionStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory session store")
		sessions = store.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL session store")
		sessions, err = store.NewPostgresStore(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize session store", zap.Error(err))
		}
	}
	defer sessions.Close()

	// Scoring engine with placeholder estimators
	engine := scoring.NewEngine(topics, nil, nil, logger)

	// Response generator: language model if configured, canned otherwise
	var gen generator.Generator = generator.StaticGenerator{}
	if cfg.OpenAI.APIKey != "" {
		gen = generator.NewOpenAIGenerator(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
	}

	ideaCache := ideas.NewCache(time.Duration(cfg.Chat.IdeaCacheTTLMin)*time.Minute, logger)

	chatSvc := chat.NewService(sessions, gen, logger,
		chat.WithSearcher(ideaCache, cfg.Chat.IdeaSearchLimit),
		chat.WithContextWindow(cfg.Chat.ContextWindow),
	)

	ingestSvc := ingest.NewService(time.Duration(cfg.Ingest.TimeoutSeconds)*time.Second, logger)

	// Optional Telegram gateway
	if cfg.Telegram.Enabled {
		gateway, err := telegram.New(cfg.Telegram.Token, chatSvc, logger)
		if err != nil {
			logger.Fatal("Failed to create telegram gateway", zap.Error(err))
		}
		go func() {
			if err := gateway.Start(context.Background()); err != nil && err != context.Canceled {
				logger.Error("Telegram gateway stopped", zap.Error(err))
			}
		}()
	}

	// HTTP surface
	r := gin.Default()
	handler := api.NewHandler(chatSvc, ingestSvc, engine, ideaCache, cfg.Ingest.MaxRSSEntries, logger)
	handler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server starting", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
