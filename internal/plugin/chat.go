package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/providers/openai"
)

const chatCost = 1

const chatSystemPrompt = "You are a Nollywood pre-production assistant. " +
	"Answer questions about script coverage, casting, budgets and shot planning. Be concise."

type chatPayload struct {
	Message string           `json:"message"`
	History []openai.Message `json:"history"`
}

// ChatAssistant answers one assistant turn synchronously.
type ChatAssistant struct {
	client *openai.Client
}

func NewChatAssistant(client *openai.Client) *ChatAssistant {
	return &ChatAssistant{client: client}
}

func (p *ChatAssistant) Type() domain.JobType { return domain.JobTypeChatAssistant }

func (p *ChatAssistant) Class() LatencyClass { return ClassShort }

func (p *ChatAssistant) Cost(json.RawMessage) int { return chatCost }

func (p *ChatAssistant) Validate(payload json.RawMessage) error {
	var decoded chatPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(decoded.Message) == "" {
		return fmt.Errorf("%w: message is required", domain.ErrInvalidPayload)
	}
	return nil
}

func (p *ChatAssistant) Run(ctx context.Context, job *domain.Job) (Outcome, error) {
	var decoded chatPayload
	if err := json.Unmarshal(job.Payload, &decoded); err != nil {
		return Outcome{}, fmt.Errorf("decode chat payload: %w", err)
	}
	messages := make([]openai.Message, 0, len(decoded.History)+2)
	messages = append(messages, openai.Message{Role: "system", Content: chatSystemPrompt})
	messages = append(messages, decoded.History...)
	messages = append(messages, openai.Message{Role: "user", Content: decoded.Message})

	reply, err := p.client.ChatReply(ctx, messages)
	if err != nil {
		return Outcome{}, fmt.Errorf("chat reply: %w", err)
	}
	return Completed(map[string]string{"reply": reply})
}
