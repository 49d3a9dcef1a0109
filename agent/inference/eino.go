package inference

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

// EinoBackend completes through an eino chat model, typically the
// OpenRouter model built by pkg/openrouter.
type EinoBackend struct {
	model einomodel.BaseChatModel
}

var _ Backend = (*EinoBackend)(nil)

func NewEinoBackend(m einomodel.BaseChatModel) (*EinoBackend, error) {
	if m == nil {
		return nil, errors.New("chat model is required")
	}
	return &EinoBackend{model: m}, nil
}

func (b *EinoBackend) Complete(ctx context.Context, req Request) (string, error) {
	opts := []einomodel.Option{
		einomodel.WithTemperature(req.Temperature),
		einomodel.WithMaxTokens(req.MaxTokens),
	}
	if req.Model != "" {
		opts = append(opts, einomodel.WithModel(req.Model))
	}

	out, err := b.model.Generate(ctx, toSchemaMessages(req.Messages), opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: model returned no message", contractx.ErrModelInvoke)
	}
	return out.Content, nil
}

func toSchemaMessages(messages []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
