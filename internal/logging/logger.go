// =============================================================================
// Commission Report - Logging
// =============================================================================
//
// Every component logs through the Logger interface below. The default
// implementation is backed by log/slog with a text handler; output goes to
// stdout and, when configured, to a log file as well.
//
// =============================================================================

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds logger configuration.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// File, when set, receives a copy of the output.
	File string

	// Component is attached to every record as the "component" attribute.
	Component string

	// Output overrides stdout. Used by tests.
	Output io.Writer
}

// SlogLogger adapts *slog.Logger to Logger.
type SlogLogger struct {
	*slog.Logger
}

// New builds a Logger from cfg.
//
// RETURNS:
//   - The logger.
//   - A close function for the log file (a no-op when no file is used).
//   - An error if the log file cannot be opened.
func New(cfg Config) (*SlogLogger, func() error, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	closer := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(out, file)
		closer = file.Close
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}

	return &SlogLogger{Logger: logger}, closer, nil
}

// With returns a logger carrying the extra attributes.
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{Logger: l.Logger.With(args...)}
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return &SlogLogger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
