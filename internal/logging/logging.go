// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"advisorledger/internal/config"

	"github.com/rs/zerolog"
)

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to stderr.
func New(cfg *config.LogConfig) zerolog.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput returns a logger writing JSON lines to w, or human-readable lines
// when cfg.Format is "console".
func NewWithOutput(cfg *config.LogConfig, w io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "advisorledger").
		Logger()
}
