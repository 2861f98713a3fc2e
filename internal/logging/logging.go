// Package logging builds the zerolog logger handed to the clients.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"binconn/pkg/core"
)

// Config describes log level, console format and an optional rotating file.
type Config struct {
	Level  string
	Format string
	File   string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output replaces stderr, mainly for tests.
	Output io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger and a closer for its file, if any.
// The file always receives JSON; the console follows Format.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var console io.Writer = out
	if cfg.Format == "" || cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var (
		writer io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Str("component", "binconn").Logger()
	return logger, closer, nil
}

// FromConfig builds a logger from the logging fields of a client config.
func FromConfig(c *core.Config) (zerolog.Logger, io.Closer, error) {
	return New(Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File:   c.LogFile,
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
