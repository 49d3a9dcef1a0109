package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	memoryx "github.com/tanpawarit/microfounder-os/agent/memory"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
)

// isoMillis matches the timestamp format stored in createdAt columns.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Deps are the collaborators shared by every persona. SQL is required by
// the CEO and Finance agents, Buckets by Marketing and Product.
type Deps struct {
	Inference contractx.Inference
	Memory    contractx.Memory
	SQL       contractx.SQL
	Buckets   contractx.Buckets
	Prompts   *promptx.Set

	// Options returns per-agent inference overrides. Nil keeps the client
	// defaults.
	Options func(contractx.AgentKind) contractx.InferOptions
	Now     func() time.Time
}

func (d Deps) check(kind contractx.AgentKind, needSQL, needBuckets bool) (Deps, error) {
	switch {
	case d.Inference == nil:
		return d, fmt.Errorf("%s agent: inference is required", kind)
	case d.Memory == nil:
		return d, fmt.Errorf("%s agent: memory is required", kind)
	case d.Prompts == nil:
		return d, fmt.Errorf("%s agent: prompts are required", kind)
	case needSQL && d.SQL == nil:
		return d, fmt.Errorf("%s agent: sql is required", kind)
	case needBuckets && d.Buckets == nil:
		return d, fmt.Errorf("%s agent: buckets are required", kind)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d, nil
}

type base struct {
	kind contractx.AgentKind
	deps Deps
}

func (b *base) Kind() contractx.AgentKind {
	return b.kind
}

func (b *base) options() contractx.InferOptions {
	if b.deps.Options == nil {
		return contractx.InferOptions{}
	}
	return b.deps.Options(b.kind)
}

func (b *base) millis() int64 {
	return b.deps.Now().UnixMilli()
}

func (b *base) render(ctx context.Context, name promptx.Name, vars map[string]any) (string, error) {
	out, err := b.deps.Prompts.Render(ctx, name, vars)
	if err != nil {
		return "", fmt.Errorf("%s agent: %w", b.kind, err)
	}
	return out, nil
}

func (b *base) infer(ctx context.Context, prompt string) (string, error) {
	return b.deps.Inference.Infer(ctx, prompt, b.options())
}

// converse runs one chat turn and records it in the agent's memory log as a
// user entry followed by an assistant entry.
func (b *base) converse(ctx context.Context, userID, logKey, system string, prior []contractx.Message, message string) (contractx.ChatResult, error) {
	msgs := make([]contractx.Message, 0, len(prior)+2)
	msgs = append(msgs, contractx.Message{Role: contractx.RoleSystem, Content: system})
	msgs = append(msgs, prior...)
	msgs = append(msgs, contractx.Message{Role: contractx.RoleUser, Content: message})

	reply, err := b.deps.Inference.Chat(ctx, msgs, b.options())
	if err != nil {
		return contractx.ChatResult{}, err
	}

	if err := b.appendLog(ctx, logKey, userID, contractx.RoleUser, message); err != nil {
		return contractx.ChatResult{}, err
	}
	if err := b.appendLog(ctx, logKey, userID, contractx.RoleAssistant, reply); err != nil {
		return contractx.ChatResult{}, err
	}
	return contractx.ChatResult{Response: reply, AgentID: b.kind.String()}, nil
}

func (b *base) appendLog(ctx context.Context, key, userID string, role contractx.Role, content string) error {
	return b.append(ctx, key, userID, contractx.LogEntry{
		Role:      role,
		Content:   content,
		Timestamp: b.millis(),
	})
}

// append and the other persist helpers swallow degradations: the fallback
// container holds the value and the caller still gets its result.
func (b *base) append(ctx context.Context, key, userID string, value any) error {
	if err := b.deps.Memory.Append(ctx, key, userID, value); contractx.Failed(err) {
		return fmt.Errorf("%s agent: append %s: %w", b.kind, key, err)
	}
	return nil
}

func (b *base) write(ctx context.Context, key, userID string, value any) error {
	if err := b.deps.Memory.Write(ctx, key, userID, value); contractx.Failed(err) {
		return fmt.Errorf("%s agent: write %s: %w", b.kind, key, err)
	}
	return nil
}

func (b *base) insert(ctx context.Context, table string, row contractx.Row) error {
	if _, err := b.deps.SQL.Insert(ctx, table, row); contractx.Failed(err) {
		return fmt.Errorf("%s agent: insert %s: %w", b.kind, table, err)
	}
	return nil
}

func (b *base) upload(ctx context.Context, bucket, key string, data []byte, meta map[string]string) error {
	if err := b.deps.Buckets.Upload(ctx, bucket, key, data, meta); contractx.Failed(err) {
		return fmt.Errorf("%s agent: upload %s/%s: %w", b.kind, bucket, key, err)
	}
	return nil
}

func (b *base) readObject(ctx context.Context, key, userID string) (json.RawMessage, error) {
	raw, err := memoryx.ReadObject(ctx, b.deps.Memory, key, userID)
	if contractx.Failed(err) {
		return nil, fmt.Errorf("%s agent: read %s: %w", b.kind, key, err)
	}
	return raw, nil
}

func (b *base) readSlice(ctx context.Context, key, userID string) ([]json.RawMessage, error) {
	items, err := memoryx.ReadSlice(ctx, b.deps.Memory, key, userID)
	if contractx.Failed(err) {
		return nil, fmt.Errorf("%s agent: read %s: %w", b.kind, key, err)
	}
	return items, nil
}

// business loads the businesses row by id. A missing row yields a zero
// Business, rendered with the Unknown/Early defaults.
func (b *base) business(ctx context.Context, businessID string) (contractx.Business, error) {
	rows, err := b.deps.SQL.Select(ctx, sqlstore.TableBusinesses, contractx.Row{"id": businessID})
	if contractx.Failed(err) {
		return contractx.Business{}, fmt.Errorf("%s agent: load business: %w", b.kind, err)
	}
	if len(rows) == 0 {
		return contractx.Business{ID: businessID}, nil
	}
	return contractx.BusinessFromRow(rows[0]), nil
}

func (b *base) rows(ctx context.Context, table string, where contractx.Row) ([]contractx.Row, error) {
	rows, err := b.deps.SQL.Select(ctx, table, where)
	if contractx.Failed(err) {
		return nil, fmt.Errorf("%s agent: select %s: %w", b.kind, table, err)
	}
	return rows, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Tail returns the last n items of s, never nil.
func Tail[T any](s []T, n int) []T {
	if n <= 0 || len(s) == 0 {
		return []T{}
	}
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append([]T(nil), s...)
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", contractx.ErrValidation, field)
	}
	return nil
}
