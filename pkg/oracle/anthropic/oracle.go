// Package anthropic classifies user messages with the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/oracle"
)

const (
	// DefaultModel is used when no model name is configured.
	DefaultModel = anthropic.ModelClaude3_5Sonnet20241022

	maxTokens = 256
)

// Oracle implements ports.Oracle on top of a Claude model.
type Oracle struct {
	client *anthropic.Client
	model  anthropic.Model
}

// New creates an oracle for model. Request options (API key, base URL,
// retries) are passed through to the client.
func New(model string, opts ...option.RequestOption) *Oracle {
	client := anthropic.NewClient(opts...)
	return NewFromClient(&client, model)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *anthropic.Client, model string) *Oracle {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultModel
	}
	return &Oracle{client: client, model: m}
}

// Model returns the configured model name.
func (o *Oracle) Model() string {
	return string(o.model)
}

// Classify implements ports.Oracle.
func (o *Oracle) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       o.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0),
		// The decisive message is pinned in the system prompt so the
		// conversation can keep strict user/assistant alternation.
		System: []anthropic.TextBlockParam{
			{Text: oracle.SystemPrompt(req) + "\n\n" + oracle.LastUserPrompt(req)},
		},
		Messages: buildMessages(req.History),
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return oracle.ParseResponse(text.String())
}

func buildMessages(history []domain.Message) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		if m.Text == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == domain.RoleAssistant {
			if len(messages) == 0 {
				// Conversations must open with a user turn.
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}
	if len(messages) == 0 {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("(no message)")))
	}
	return messages
}
