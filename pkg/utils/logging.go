// Package utils holds logging setup and small helpers shared by storenode packages.
package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig selects level, format and destination of the process logger.
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
	File   string
	Output io.Writer
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the process logger. The returned closer releases the log
// file, if one was opened.
func NewLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		output io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	return slog.New(handler), closer, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Component returns logger tagged with a component attribute, or a discarding
// logger when logger is nil.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", name)
}
