package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/microfounder-os/agent/agents/manager"
	"github.com/tanpawarit/microfounder-os/agent/agents/persona"
	"github.com/tanpawarit/microfounder-os/agent/bucket"
	contractx "github.com/tanpawarit/microfounder-os/agent/contract"
	"github.com/tanpawarit/microfounder-os/agent/inference"
	"github.com/tanpawarit/microfounder-os/agent/llm"
	memoryx "github.com/tanpawarit/microfounder-os/agent/memory"
	promptx "github.com/tanpawarit/microfounder-os/agent/prompt"
	"github.com/tanpawarit/microfounder-os/agent/sqlstore"
	"github.com/tanpawarit/microfounder-os/agent/workspace"
	configx "github.com/tanpawarit/microfounder-os/pkg/config"
	mysqlx "github.com/tanpawarit/microfounder-os/pkg/mysql"
	openrouterx "github.com/tanpawarit/microfounder-os/pkg/openrouter"
	postgresx "github.com/tanpawarit/microfounder-os/pkg/postgres"
	redisx "github.com/tanpawarit/microfounder-os/pkg/redis"
)

type app struct {
	manager   *manager.Manager
	workspace *workspace.Service
	buckets   *bucket.Store
	closers   []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close resource")
		}
	}
}

// build wires the adapters selected by cfg. A remote that cannot be reached
// at startup is logged and replaced by the local fallback.
func build(ctx context.Context, cfg AppConfig) (*app, error) {
	a := &app{}

	memRemote, err := a.memoryRemote(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.MemoryDriver).Msg("memory remote unavailable, using local store")
		memRemote = nil
	}
	sqlRemote, err := a.sqlRemote(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.SQLDriver).Msg("sql remote unavailable, using local store")
		sqlRemote = nil
	}
	bucketRemote, err := bucketRemote(cfg)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.BucketDriver).Msg("bucket remote unavailable, using local store")
		bucketRemote = nil
	}

	memory := memoryx.New(memRemote)
	sql := sqlstore.New(sqlRemote)
	a.buckets = bucket.New(bucketRemote)

	if err := sqlstore.EnsureSchema(ctx, sql); contractx.Failed(err) {
		return nil, fmt.Errorf("ensure schema: %w", err)
	} else if err != nil {
		log.Warn().Err(err).Msg("schema created on local sql store only")
	}

	llmCfg, err := configx.New[llm.Config]("OPENROUTER")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}
	infer, err := inferenceClient(ctx, cfg.InferenceDriver, *llmCfg)
	if err != nil {
		return nil, err
	}

	prompts, err := promptx.Load()
	if err != nil {
		return nil, err
	}

	deps := persona.Deps{
		Inference: infer,
		Memory:    memory,
		SQL:       sql,
		Buckets:   a.buckets,
		Prompts:   prompts,
		Options:   llmCfg.OptionsFor,
	}
	if a.manager, err = manager.New(deps); err != nil {
		return nil, err
	}
	if a.workspace, err = workspace.New(memory, sql, a.manager); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) memoryRemote(ctx context.Context, cfg AppConfig) (memoryx.Remote, error) {
	opts := []memoryx.RemoteOption{
		memoryx.WithKeyPrefix(cfg.MemoryKeyPrefix),
		memoryx.WithTTL(cfg.MemoryTTL),
	}
	switch cfg.MemoryDriver {
	case "upstash":
		upCfg, err := configx.New[memoryx.UpstashConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		return memoryx.NewUpstashRemote(*upCfg, opts...)
	case "redis":
		rCfg, err := configx.New[redisx.Config]("REDIS")
		if err != nil {
			return nil, err
		}
		rdb, err := redisx.New(ctx, *rCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return memoryx.NewRedisRemote(rdb, opts...)
	case "local", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown memory driver %q", cfg.MemoryDriver)
	}
}

func (a *app) sqlRemote(ctx context.Context, cfg AppConfig) (sqlstore.Remote, error) {
	switch cfg.SQLDriver {
	case "postgres":
		pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
		if err != nil {
			return nil, err
		}
		db, err := postgresx.Open(ctx, *pgCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return sqlstore.NewBunRemote(db), nil
	case "mysql":
		myCfg, err := configx.New[mysqlx.Config]("MYSQL")
		if err != nil {
			return nil, err
		}
		db, err := mysqlx.Open(*myCfg)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return sqlstore.NewGormRemote(db), nil
	case "local", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sql driver %q", cfg.SQLDriver)
	}
}

func bucketRemote(cfg AppConfig) (bucket.Remote, error) {
	switch cfg.BucketDriver {
	case "http":
		hCfg, err := configx.New[bucket.HTTPConfig]("BUCKET")
		if err != nil {
			return nil, err
		}
		return bucket.NewHTTPRemote(*hCfg, nil)
	case "dir":
		return bucket.NewDirRemote(cfg.BucketDir)
	case "local", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown bucket driver %q", cfg.BucketDriver)
	}
}

func inferenceClient(ctx context.Context, driver string, cfg llm.Config) (*inference.Client, error) {
	var backend inference.Backend
	switch driver {
	case "eino", "":
		cm, err := openrouterx.NewChatModel(ctx, cfg.OpenRouter())
		if err != nil {
			return nil, err
		}
		if backend, err = inference.NewEinoBackend(cm); err != nil {
			return nil, err
		}
	case "openai":
		client, err := openrouterx.NewClient(cfg.OpenRouter())
		if err != nil {
			return nil, err
		}
		if backend, err = inference.NewOpenAIBackend(client); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown inference driver %q", driver)
	}
	return inference.New(backend, inference.WithDefaults(cfg.Defaults()))
}
