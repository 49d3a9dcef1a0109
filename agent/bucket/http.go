package bucket

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

	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
)

const (
	metadataHeader      = "X-Object-Metadata"
	maxObjectSizeBytes  = 16 << 20
	maxListingSizeBytes = 2 << 20
)

type HTTPConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// HTTPRemote is a client for a REST object API:
//
//	PUT    {base}/{bucket}/{key}   body + X-Object-Metadata (JSON)
//	GET    {base}/{bucket}/{key}
//	HEAD   {base}/{bucket}/{key}   X-Object-Metadata
//	DELETE {base}/{bucket}/{key}
//	GET    {base}/{bucket}?prefix= {"keys": [...]}
type HTTPRemote struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Remote = (*HTTPRemote)(nil)

func NewHTTPRemote(cfg HTTPConfig, client *http.Client) (*HTTPRemote, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("bucket url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid bucket url: %w", err)
	}

	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPRemote{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: client,
	}, nil
}

func (r *HTTPRemote) objectURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.baseURL + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

func (r *HTTPRemote) Upload(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) error {
	meta, err := json.Marshal(cloneMeta(metadata))
	if err != nil {
		return fmt.Errorf("marshal object metadata: %w", err)
	}
	resp, err := r.do(ctx, http.MethodPut, r.objectURL(bucket, key), bytes.NewReader(data), func(req *http.Request) {
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set(metadataHeader, string(meta))
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (r *HTTPRemote) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := r.do(ctx, http.MethodGet, r.objectURL(bucket, key), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

func (r *HTTPRemote) Metadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	resp, err := r.do(ctx, http.MethodHead, r.objectURL(bucket, key), nil, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	meta := map[string]string{}
	if raw := resp.Header.Get(metadataHeader); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("decode object metadata: %w", err)
		}
	}
	return meta, nil
}

func (r *HTTPRemote) Delete(ctx context.Context, bucket, key string) error {
	resp, err := r.do(ctx, http.MethodDelete, r.objectURL(bucket, key), nil, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (r *HTTPRemote) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	target := r.baseURL + "/" + url.PathEscape(bucket) + "?prefix=" + url.QueryEscape(prefix)
	resp, err := r.do(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing struct {
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingSizeBytes)).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode bucket listing: %w", err)
	}
	return listing.Keys, nil
}

// do sends the request and returns the response for 2xx statuses. A 404
// is reported as contractx.ErrNotFound.
func (r *HTTPRemote) do(ctx context.Context, method, target string, body io.Reader, prepare func(*http.Request)) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build bucket request: %w", err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if prepare != nil {
		prepare(req)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute bucket request: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s", contractx.ErrNotFound, method, target)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("bucket http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return resp, nil
}
