package inference

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

// OpenAIBackend completes through the OpenAI SDK against any
// OpenAI-compatible endpoint.
type OpenAIBackend struct {
	client *openaisdk.Client
}

var _ Backend = (*OpenAIBackend)(nil)

func NewOpenAIBackend(client *openaisdk.Client) (*OpenAIBackend, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	return &OpenAIBackend{client: client}, nil
}

func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Messages:    toOpenAIMessages(req.Messages),
		Model:       openaisdk.ChatModel(req.Model),
		Temperature: openaisdk.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(req.MaxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", contractx.ErrModelInvoke)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []contractx.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, openaisdk.AssistantMessage(m.Content))
		default:
			out = append(out, openaisdk.UserMessage(m.Content))
		}
	}
	return out
}
