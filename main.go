package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/microfounder-os/api/mcpserver"
	"github.com/tanpawarit/microfounder-os/api/webserver"
	configx "github.com/tanpawarit/microfounder-os/pkg/config"
	_ "github.com/tanpawarit/microfounder-os/pkg/logger/autoload"
)

type AppConfig struct {
	MemoryDriver    string        `envconfig:"MEMORY_DRIVER" default:"local"`
	SQLDriver       string        `envconfig:"SQL_DRIVER" default:"local"`
	BucketDriver    string        `envconfig:"BUCKET_DRIVER" default:"local"`
	InferenceDriver string        `envconfig:"INFERENCE_DRIVER" default:"eino"`
	BucketDir       string        `envconfig:"BUCKET_DIR" default:"data/buckets"`
	MemoryKeyPrefix string        `envconfig:"MEMORY_KEY_PREFIX" default:"mfos:"`
	MemoryTTL       time.Duration `envconfig:"MEMORY_TTL" default:"0s"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":3001"`
	JWTSecret       string        `envconfig:"JWT_SECRET"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, *appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}
	defer app.Close()

	if len(os.Args) > 1 && os.Args[1] == "mcp" {
		log.Info().Msg("serving MCP over stdio")
		if err := mcpserver.Serve(app.manager); err != nil {
			log.Fatal().Err(err).Msg("mcp server stopped")
		}
		return
	}

	engine := webserver.New(webserver.Config{
		JWTSecret:   appCfg.JWTSecret,
		CORSOrigins: appCfg.CORSOrigins,
	}, app.manager, app.workspace, app.buckets)

	srv := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
}
