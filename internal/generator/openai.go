package generator

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xaenox/muse/internal/models"
	"go.uber.org/zap"
)

const systemPrompt = `You are Muse, an intelligent ideation and reflection agent. You help users discover insights, explore ideas, and think through topics deeply. Respond naturally and helpfully. If the user is exploring ideas, suggest relevant directions. If they're seeking summaries or insights, provide clear analysis. Be conversational but insightful.`

// OpenAIGenerator generates replies with a chat-completion model. Errors
// propagate to the caller; the turn fails rather than degrade silently.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, history []*models.ChatMessage, message string, topics []string) (string, error) {
	system := systemPrompt
	if len(topics) > 0 {
		system += "\n\nCurrent topics of focus: " + strings.Join(topics, ", ")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    messages,
			MaxTokens:   g.maxTokens,
			Temperature: float32(g.temperature),
		},
	)
	if err != nil {
		g.logger.Error("Failed to get completion", zap.Error(err))
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response generation returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
