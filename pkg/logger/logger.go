package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Level        string `split_words:"true" default:"info"`
	PrettyFormat bool   `split_words:"true" default:"false"`
	Service      string `split_words:"true" default:"microfounder-os"`
}

var DefaultConfig = Config{
	Level:   "info",
	Service: "microfounder-os",
}

// New builds a logger writing to w. An unparseable level falls back to info.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.PrettyFormat {
		w = zerolog.ConsoleWriter{Out: w}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Init replaces the global logger. Logs go to stderr so stdout stays free
// for the MCP stdio transport.
func Init(opts ...Config) {
	cfg := DefaultConfig
	if len(opts) > 0 {
		cfg = opts[0]
	}
	log.Logger = New(cfg, os.Stderr)
	zerolog.DefaultContextLogger = &log.Logger
}
