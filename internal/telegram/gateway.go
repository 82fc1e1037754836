package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/muse/internal/chat"
	"github.com/xaenox/muse/internal/models"
	"go.uber.org/zap"
)

// Gateway exposes the chat orchestrator over Telegram long polling. Each
// Telegram chat maps to one session for the life of the process.
type Gateway struct {
	api    *tgbotapi.BotAPI
	chat   *chat.Service
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[int64]string
}

func New(token string, chatSvc *chat.Service, logger *zap.Logger) (*Gateway, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Gateway{
		api:      api,
		chat:     chatSvc,
		logger:   logger,
		sessions: make(map[int64]string),
	}, nil
}

func (g *Gateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := g.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			g.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go g.handleMessage(ctx, update.Message)
		}
	}
}

func (g *Gateway) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		g.handleCommand(message)
		return
	}

	req := &models.ChatRequest{
		SessionID: g.sessionFor(message.Chat.ID),
		UserID:    strconv.FormatInt(message.From.ID, 10),
		Message:   message.Text,
	}

	resp, err := g.chat.SendMessage(ctx, req)
	if err != nil {
		g.logger.Error("Failed to process message",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		g.reply(message.Chat.ID, "Sorry, I couldn't process that. Please try again.")
		return
	}

	g.rememberSession(message.Chat.ID, resp.SessionID)
	g.reply(message.Chat.ID, resp.Content)
}

func (g *Gateway) handleCommand(message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		g.reply(message.Chat.ID, "Hi! I'm Muse, an ideation agent. Send me a message and we'll explore ideas together.")
	case "reset":
		g.mu.Lock()
		delete(g.sessions, message.Chat.ID)
		g.mu.Unlock()
		g.reply(message.Chat.ID, "Started a fresh conversation.")
	default:
		g.reply(message.Chat.ID, "Unknown command. Just send me a message to chat.")
	}
}

func (g *Gateway) sessionFor(chatID int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[chatID]
}

func (g *Gateway) rememberSession(chatID int64, sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[chatID] = sessionID
}

func (g *Gateway) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := g.api.Send(msg); err != nil {
		g.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
