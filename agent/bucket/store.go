package bucket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/fallback"
)

var errNoRemote = fmt.Errorf("%w: bucket remote is not configured", contractx.ErrRemoteUnavailable)

// Object is a stored blob with its metadata.
type Object struct {
	Data     []byte
	Metadata map[string]string
	StoredAt time.Time
}

// Remote is an object storage backend. Missing objects are reported with
// contractx.ErrNotFound.
type Remote interface {
	Upload(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
	Metadata(ctx context.Context, bucket, key string) (map[string]string, error)
}

type Option func(*Store)

func WithFallback(local fallback.Store[Object]) Option {
	return func(s *Store) {
		if local != nil {
			s.local = local
		}
	}
}

type Store struct {
	remote Remote
	local  fallback.Store[Object]
	now    func() time.Time
}

var _ contractx.Buckets = (*Store)(nil)

func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		local:  fallback.NewMap[Object](),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func objectKey(bucket, key string) string {
	return bucket + "\x00" + key
}

func validate(bucket, key string) error {
	if strings.TrimSpace(bucket) == "" {
		return fmt.Errorf("%w: bucket name is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: object key is empty", contractx.ErrValidation)
	}
	return nil
}

func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, metadata map[string]string) error {
	if err := validate(bucket, key); err != nil {
		return err
	}

	obj := Object{
		Data:     append([]byte(nil), data...),
		Metadata: cloneMeta(metadata),
		StoredAt: s.now().UTC(),
	}

	var result error
	if s.remote == nil {
		result = contractx.Degraded("bucket.upload", errNoRemote)
	} else if err := s.remote.Upload(ctx, bucket, key, data, metadata); err != nil {
		if errors.Is(err, contractx.ErrValidation) {
			return err
		}
		log.Warn().Err(err).Str("op", "bucket.upload").Str("bucket", bucket).Str("key", key).Msg("remote upload failed, writing local fallback")
		result = contractx.Degraded("bucket.upload", err)
	}
	s.local.Set(objectKey(bucket, key), obj)
	return result
}

// Download returns the object body. Objects the remote does not know
// about are looked up locally. An absent object yields a nil body; the
// error is then nil or, when the remote failed, a degradation.
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validate(bucket, key); err != nil {
		return nil, err
	}
	obj, err := s.read(ctx, "bucket.download", bucket, key, func() (Object, error) {
		data, err := s.remote.Download(ctx, bucket, key)
		return Object{Data: data}, err
	})
	if obj == nil {
		return nil, err
	}
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	return data, err
}

// GetMetadata returns the object's metadata, never nil for a stored
// object. An absent object yields nil like Download.
func (s *Store) GetMetadata(ctx context.Context, bucket, key string) (map[string]string, error) {
	if err := validate(bucket, key); err != nil {
		return nil, err
	}
	obj, err := s.read(ctx, "bucket.metadata", bucket, key, func() (Object, error) {
		meta, err := s.remote.Metadata(ctx, bucket, key)
		return Object{Metadata: meta}, err
	})
	if obj == nil {
		return nil, err
	}
	return cloneMeta(obj.Metadata), err
}

func (s *Store) read(ctx context.Context, op, bucket, key string, fetch func() (Object, error)) (*Object, error) {
	var remoteErr error
	if s.remote == nil {
		remoteErr = errNoRemote
	} else {
		obj, err := fetch()
		if err == nil {
			return &obj, nil
		}
		if !errors.Is(err, contractx.ErrNotFound) {
			log.Warn().Err(err).Str("op", op).Str("bucket", bucket).Str("key", key).Msg("remote read failed, using local fallback")
			remoteErr = err
		}
	}

	var degraded error
	if remoteErr != nil {
		degraded = contractx.Degraded(op, remoteErr)
	}
	local, ok := s.local.Get(objectKey(bucket, key))
	if !ok {
		return nil, degraded
	}
	return &local, degraded
}

// List returns the sorted keys in bucket that start with prefix.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("%w: bucket name is empty", contractx.ErrValidation)
	}
	if s.remote == nil {
		return s.listLocal(bucket, prefix), contractx.Degraded("bucket.list", errNoRemote)
	}
	keys, err := s.remote.List(ctx, bucket, prefix)
	if err != nil {
		log.Warn().Err(err).Str("op", "bucket.list").Str("bucket", bucket).Msg("remote list failed, using local fallback")
		return s.listLocal(bucket, prefix), contractx.Degraded("bucket.list", err)
	}
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if err := validate(bucket, key); err != nil {
		return err
	}
	s.local.Delete(objectKey(bucket, key))

	if s.remote == nil {
		return contractx.Degraded("bucket.delete", errNoRemote)
	}
	if err := s.remote.Delete(ctx, bucket, key); err != nil && !errors.Is(err, contractx.ErrNotFound) {
		log.Warn().Err(err).Str("op", "bucket.delete").Str("bucket", bucket).Str("key", key).Msg("remote delete failed")
		return contractx.Degraded("bucket.delete", err)
	}
	return nil
}

func (s *Store) listLocal(bucket, prefix string) []string {
	scope := objectKey(bucket, "")
	keys := []string{}
	for _, k := range s.local.Keys() {
		if strings.HasPrefix(k, scope+prefix) {
			keys = append(keys, strings.TrimPrefix(k, scope))
		}
	}
	sort.Strings(keys)
	return keys
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
