package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

const (
	DefaultModel       = "llama-3.1-70b"
	DefaultTemperature = float32(0.7)
	DefaultMaxTokens   = 2000
)

// Error is a backend failure. It matches contractx.ErrInferenceFailed and
// unwraps to the backend's cause.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + " failed: " + e.Err.Error()
}

func (e *Error) Is(target error) bool { return target == contractx.ErrInferenceFailed }

func (e *Error) Unwrap() error { return e.Err }

// Request is one resolved completion call.
type Request struct {
	Messages    []contractx.Message
	Model       string
	Temperature float32
	MaxTokens   int
}

// Backend performs a chat completion against a remote model.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Option func(*Client)

// WithDefaults replaces the fallback model settings for every call.
func WithDefaults(opts contractx.InferOptions) Option {
	return func(c *Client) {
		c.defaults = merge(c.defaults, opts)
	}
}

// Client is the inference adapter. Generation has no local fallback, so
// every backend failure is returned as ErrInferenceFailed.
type Client struct {
	backend  Backend
	defaults Request
}

var _ contractx.Inference = (*Client)(nil)

func New(backend Backend, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("inference backend is required")
	}
	c := &Client{
		backend: backend,
		defaults: Request{
			Model:       DefaultModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Infer(ctx context.Context, prompt string, opts contractx.InferOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", contractx.ErrValidation)
	}
	req := merge(c.defaults, opts)
	req.Messages = []contractx.Message{{Role: contractx.RoleUser, Content: prompt}}

	text, err := c.backend.Complete(ctx, req)
	if err != nil {
		return "", &Error{Op: "Inference", Err: err}
	}
	return text, nil
}

func (c *Client) Chat(ctx context.Context, messages []contractx.Message, opts contractx.InferOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: chat messages are empty", contractx.ErrValidation)
	}
	req := merge(c.defaults, opts)
	req.Messages = append([]contractx.Message(nil), messages...)

	text, err := c.backend.Complete(ctx, req)
	if err != nil {
		return "", &Error{Op: "Chat inference", Err: err}
	}
	return text, nil
}

func merge(base Request, opts contractx.InferOptions) Request {
	if v := strings.TrimSpace(opts.Model); v != "" {
		base.Model = v
	}
	if opts.Temperature != nil {
		base.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		base.MaxTokens = opts.MaxTokens
	}
	return base
}
