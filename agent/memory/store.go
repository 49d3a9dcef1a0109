package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/fallback"
)

var errNoRemote = fmt.Errorf("%w: memory remote is not configured", contractx.ErrRemoteUnavailable)

// Remote is the key/value backend behind Store. Values are JSON bytes.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type Option func(*Store)

func WithFallback(local fallback.Store[json.RawMessage]) Option {
	return func(s *Store) {
		if local != nil {
			s.local = local
		}
	}
}

// Store scopes every key to a user and degrades to its local container
// whenever the remote fails. A nil remote runs local only.
type Store struct {
	remote Remote
	local  fallback.Store[json.RawMessage]
}

var _ contractx.Memory = (*Store)(nil)

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		local:  fallback.NewMap[json.RawMessage](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func storageKey(key, userID string) string {
	return userID + ":" + key
}

func (s *Store) Read(ctx context.Context, key, userID string) (json.RawMessage, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: memory key is empty", contractx.ErrValidation)
	}
	k := storageKey(key, userID)

	if s.remote == nil {
		return s.readLocal(k), contractx.Degraded("memory.read", errNoRemote)
	}

	raw, ok, err := s.remote.Get(ctx, k)
	if err != nil {
		log.Warn().Err(err).Str("op", "memory.read").Str("key", k).Msg("remote read failed, using local fallback")
		return s.readLocal(k), contractx.Degraded("memory.read", err)
	}
	if !ok || isNull(raw) {
		return s.readLocal(k), nil
	}
	return normalize(raw), nil
}

func (s *Store) Write(ctx context.Context, key, userID string, value any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: memory key is empty", contractx.ErrValidation)
	}
	payload, err := encode(value)
	if err != nil {
		return err
	}
	k := storageKey(key, userID)

	if s.remote == nil {
		s.local.Set(k, payload)
		return contractx.Degraded("memory.write", errNoRemote)
	}

	if err := s.remote.Set(ctx, k, payload); err != nil {
		log.Warn().Err(err).Str("op", "memory.write").Str("key", k).Msg("remote write failed, writing local fallback")
		s.local.Set(k, payload)
		return contractx.Degraded("memory.write", err)
	}
	s.local.Set(k, payload)
	return nil
}

// Append pushes value onto the JSON array stored at key. The read and the
// write are separate calls, so concurrent appends to one key can lose an
// entry.
func (s *Store) Append(ctx context.Context, key, userID string, value any) error {
	existing, readErr := s.Read(ctx, key, userID)
	if contractx.Failed(readErr) {
		return readErr
	}

	item, err := encode(value)
	if err != nil {
		return err
	}
	next, err := appendRaw(existing, item)
	if err != nil {
		return err
	}

	writeErr := s.Write(ctx, key, userID, next)
	if contractx.Failed(writeErr) {
		return writeErr
	}
	return contractx.FirstDegraded(readErr, writeErr)
}

func (s *Store) Delete(ctx context.Context, key, userID string) error {
	k := storageKey(key, userID)
	s.local.Delete(k)

	if s.remote == nil {
		return contractx.Degraded("memory.delete", errNoRemote)
	}
	if err := s.remote.Del(ctx, k); err != nil {
		log.Warn().Err(err).Str("op", "memory.delete").Str("key", k).Msg("remote delete failed")
		return contractx.Degraded("memory.delete", err)
	}
	return nil
}

// List returns the user's keys that start with prefix, without the user
// scope.
func (s *Store) List(ctx context.Context, userID, prefix string) ([]string, error) {
	scope := storageKey("", userID)

	if s.remote == nil {
		return s.listLocal(scope, prefix), contractx.Degraded("memory.list", errNoRemote)
	}

	keys, err := s.remote.Keys(ctx, scope+prefix)
	if err != nil {
		log.Warn().Err(err).Str("op", "memory.list").Str("prefix", scope+prefix).Msg("remote list failed, using local fallback")
		return s.listLocal(scope, prefix), contractx.Degraded("memory.list", err)
	}

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, scope) {
			out = append(out, strings.TrimPrefix(k, scope))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) readLocal(k string) json.RawMessage {
	v, ok := s.local.Get(k)
	if !ok {
		return nil
	}
	return append(json.RawMessage(nil), v...)
}

func (s *Store) listLocal(scope, prefix string) []string {
	out := []string{}
	for _, k := range s.local.Keys() {
		if strings.HasPrefix(k, scope+prefix) {
			out = append(out, strings.TrimPrefix(k, scope))
		}
	}
	return out
}

func encode(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, fmt.Errorf("%w: memory value is not valid json", contractx.ErrValidation)
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal memory value: %v", contractx.ErrValidation, err)
		}
		return raw, nil
	}
}

// appendRaw pushes item onto existing. A missing value starts a new array
// and a non-array value becomes the first element.
func appendRaw(existing, item json.RawMessage) (json.RawMessage, error) {
	var items []json.RawMessage
	switch trimmed := bytes.TrimSpace(existing); {
	case isNull(trimmed):
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: decode memory array: %v", contractx.ErrValidation, err)
		}
	default:
		items = append(items, trimmed)
	}
	items = append(items, item)

	out, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal memory array: %v", contractx.ErrValidation, err)
	}
	return out, nil
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// normalize wraps non-JSON remote payloads as a JSON string.
func normalize(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return append(json.RawMessage(nil), raw...)
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
