package contract

import (
	"context"
	"encoding/json"
)

// Row is one relational record keyed by column name.
type Row = map[string]any

type Column struct {
	Name string
	Type string
}

type ExecResult struct {
	RowsAffected int64 `json:"rowsAffected"`
}

type InsertResult struct {
	ID string `json:"id"`
}

type Inference interface {
	Infer(ctx context.Context, prompt string, opts InferOptions) (string, error)
	Chat(ctx context.Context, messages []Message, opts InferOptions) (string, error)
}

type Memory interface {
	Read(ctx context.Context, key, userID string) (json.RawMessage, error)
	Write(ctx context.Context, key, userID string, value any) error
	Append(ctx context.Context, key, userID string, value any) error
	Delete(ctx context.Context, key, userID string) error
	List(ctx context.Context, userID, prefix string) ([]string, error)
}

type SQL interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Execute(ctx context.Context, query string, args ...any) (ExecResult, error)
	CreateTable(ctx context.Context, table string, columns []Column) error
	Insert(ctx context.Context, table string, row Row) (InsertResult, error)
	Select(ctx context.Context, table string, where Row) ([]Row, error)
	Update(ctx context.Context, table string, set, where Row) (ExecResult, error)
	Delete(ctx context.Context, table string, where Row) (ExecResult, error)
	Tables() []string
}

type Buckets interface {
	Upload(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
	GetMetadata(ctx context.Context, bucket, key string) (map[string]string, error)
}

// Agent is the surface shared by every persona.
type Agent interface {
	Kind() AgentKind
	Chat(ctx context.Context, userID, message, businessID string) (ChatResult, error)
}
