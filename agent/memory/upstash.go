package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultKeyPrefix     = "mfos:memory:"
	scanPageSize         = 200
	maxResponseSizeBytes = 2 << 20
)

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// RemoteOption customizes the remote key/value clients.
type RemoteOption func(*remoteOptions)

type remoteOptions struct {
	keyPrefix  string
	ttl        time.Duration
	httpClient *http.Client
}

func WithKeyPrefix(prefix string) RemoteOption {
	return func(o *remoteOptions) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			o.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) RemoteOption {
	return func(o *remoteOptions) {
		o.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) RemoteOption {
	return func(o *remoteOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func buildOptions(opts []RemoteOption) (remoteOptions, error) {
	o := remoteOptions{keyPrefix: defaultKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return o, errors.New("ttl must be >= 0")
	}
	return o, nil
}

// UpstashRemote talks to Upstash Redis through its REST command API.
type UpstashRemote struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

var _ Remote = (*UpstashRemote)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRemote(cfg UpstashConfig, opts ...RemoteOption) (*UpstashRemote, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: timeout}
	}

	return &UpstashRemote{
		baseURL:    baseURL,
		token:      token,
		httpClient: o.httpClient,
		keyPrefix:  o.keyPrefix,
		ttl:        o.ttl,
	}, nil
}

func (r *UpstashRemote) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := r.exec(ctx, []any{"GET", r.keyPrefix + key})
	if err != nil {
		return nil, false, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, false, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, false, fmt.Errorf("decode memory payload: %w", err)
	}
	return []byte(encoded), true, nil
}

func (r *UpstashRemote) Set(ctx context.Context, key string, value []byte) error {
	cmd := []any{"SET", r.keyPrefix + key, string(value)}
	if r.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(r.ttl))
	}
	_, err := r.exec(ctx, cmd)
	return err
}

func (r *UpstashRemote) Del(ctx context.Context, key string) error {
	_, err := r.exec(ctx, []any{"DEL", r.keyPrefix + key})
	return err
}

func (r *UpstashRemote) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(r.keyPrefix+prefix) + "*"
	cursor := "0"
	var keys []string

	for {
		resp, err := r.exec(ctx, []any{"SCAN", cursor, "MATCH", pattern, "COUNT", scanPageSize})
		if err != nil {
			return nil, err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(resp.Result, &page); err != nil || len(page) != 2 {
			return nil, fmt.Errorf("decode scan response: %s", string(resp.Result))
		}
		next, err := decodeCursor(page[0])
		if err != nil {
			return nil, err
		}
		var batch []string
		if err := json.Unmarshal(page[1], &batch); err != nil {
			return nil, fmt.Errorf("decode scan keys: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, r.keyPrefix))
		}

		if next == "0" {
			return keys, nil
		}
		cursor = next
	}
}

func (r *UpstashRemote) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if r == nil {
		return nil, errors.New("nil remote")
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// Upstash returns the scan cursor as a string, some proxies as a number.
func decodeCursor(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode scan cursor: %w", err)
	}
	return n.String(), nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
