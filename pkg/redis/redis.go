package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL         string        `envconfig:"URL" split_words:"true" required:"true"`
	PingTimeout time.Duration `envconfig:"PING_TIMEOUT" split_words:"true" default:"5s"`
}

func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

func MustNew(ctx context.Context, cfg Config) *redis.Client {
	rdb, err := New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	return rdb
}
