// Package openai classifies user messages with the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pichlex/debitor/pkg/domain"
	"github.com/pichlex/debitor/pkg/oracle"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Oracle implements ports.Oracle on top of an OpenAI chat model.
type Oracle struct {
	client *openai.Client
	model  string
}

// New creates an oracle for model. Request options (API key, base URL,
// retries) are passed through to the client.
func New(model string, opts ...option.RequestOption) *Oracle {
	client := openai.NewClient(opts...)
	return NewFromClient(&client, model)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *openai.Client, model string) *Oracle {
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{client: client, model: model}
}

// Model returns the configured model name.
func (o *Oracle) Model() string {
	return o.model
}

// Classify implements ports.Oracle.
func (o *Oracle) Classify(ctx context.Context, req domain.ClassifyRequest) (domain.Classification, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    buildMessages(req),
		Model:       o.model,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("%w: no choices", oracle.ErrMalformedResponse)
	}
	return oracle.ParseResponse(resp.Choices[0].Message.Content)
}

func buildMessages(req domain.ClassifyRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	messages = append(messages, openai.SystemMessage(oracle.SystemPrompt(req)))
	for _, m := range req.History {
		switch m.Role {
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	return append(messages, openai.UserMessage(oracle.LastUserPrompt(req)))
}
