package slogx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Service string
	Version string
	Env     string // e.g. "dev", "prod"
	Level   string // debug, info, warn or error; empty means info
	Format  string // json or text; anything else means json

	// Output defaults to stderr so command output on stdout stays clean.
	Output io.Writer
}

// New builds a logger from cfg, tags it with the non-empty service fields
// and installs it as the slog default. An unparseable level falls back to
// info; call ParseLevel first to reject it instead.
func New(cfg Config) *slog.Logger {
	logger := slog.New(NewHandler(cfg))

	var attrs []any
	for _, kv := range [][2]string{
		{"service", cfg.Service},
		{"version", cfg.Version},
		{"env", cfg.Env},
	} {
		if kv[1] != "" {
			attrs = append(attrs, kv[0], kv[1])
		}
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}

	slog.SetDefault(logger)
	return logger
}

// NewHandler returns the handler New wraps.
func NewHandler(cfg Config) slog.Handler {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		AddSource: cfg.Env == "dev",
		Level:     level,
	}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(out, opts)
	}
	return slog.NewJSONHandler(out, opts)
}

// ParseLevel accepts the slog level names in any case, with offsets such
// as "warn+2", plus "warning".
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("slogx: unknown log level %q", s)
	}
	return level, nil
}

// Discard returns a logger that drops everything, handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
