package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/muse/internal/models"
)

// Generator produces the assistant's reply for one turn given the prior
// conversation, the current message and the accumulated topic list.
type Generator interface {
	Generate(ctx context.Context, history []*models.ChatMessage, message string, topics []string) (string, error)
}

// StaticGenerator is a deterministic reply generator used when no language
// model is configured. It never fails.
type StaticGenerator struct{}

func (StaticGenerator) Generate(_ context.Context, _ []*models.ChatMessage, message string, topics []string) (string, error) {
	preview := message
	if len(preview) > 50 {
		preview = preview[:50]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I understand you're interested in %s... Let me help you explore this further. ", preview)
	if len(topics) > 0 {
		shown := topics
		if len(shown) > 2 {
			shown = shown[:2]
		}
		fmt.Fprintf(&b, "Based on our conversation about %s, I can suggest some related ideas.", strings.Join(shown, ", "))
	} else {
		b.WriteString("What specific aspects would you like to explore?")
	}
	return b.String(), nil
}
