package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRemote stores memory values in a Redis server through go-redis.
type RedisRemote struct {
	rdb       redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

var _ Remote = (*RedisRemote)(nil)

func NewRedisRemote(rdb redis.Cmdable, opts ...RemoteOption) (*RedisRemote, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &RedisRemote{rdb: rdb, keyPrefix: o.keyPrefix, ttl: o.ttl}, nil
}

func (r *RedisRemote) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisRemote) Set(ctx context.Context, key string, value []byte) error {
	return r.rdb.Set(ctx, r.keyPrefix+key, value, r.ttl).Err()
}

func (r *RedisRemote) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.keyPrefix+key).Err()
}

func (r *RedisRemote) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, escapeGlob(r.keyPrefix+prefix)+"*", scanPageSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
