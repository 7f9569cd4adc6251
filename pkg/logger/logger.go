// Package logger configures the structured logger used across Sentinel.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is built.
type Config struct {
	// Level is one of "debug", "info", "warn", "error" (case-insensitive).
	// Empty defaults to "info".
	Level string
	// Pretty enables a human-readable console writer instead of raw JSON.
	Pretty bool
}

// New builds a zerolog.Logger from cfg. Unknown levels fall back to Info.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writer = os.Stderr
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		console := zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
		return zerolog.New(console).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
