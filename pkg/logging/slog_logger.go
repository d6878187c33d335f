package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger implements the Logger interface on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewLogger creates a logger from the given configuration, writing to
// stderr.
func NewLogger(config LogConfig) *SlogLogger {
	return NewLoggerWithOutput(config, os.Stderr)
}

// NewLoggerWithOutput creates a logger writing to the given destination.
func NewLoggerWithOutput(config LogConfig, output io.Writer) *SlogLogger {
	options := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, options)
	} else {
		handler = slog.NewTextHandler(output, options)
	}

	return &SlogLogger{logger: slog.New(handler)}
}

// NewNopLogger creates a logger that discards everything. Useful in tests.
func NewNopLogger() *SlogLogger {
	return NewLoggerWithOutput(LogConfig{Level: "error"}, io.Discard)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func attrs(fields []Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	return args
}

func (l *SlogLogger) context() context.Context {
	if l.ctx != nil {
		return l.ctx
	}
	return context.Background()
}

// Debug logs a debug message.
func (l *SlogLogger) Debug(msg string, fields ...Field) {
	l.logger.DebugContext(l.context(), msg, attrs(fields)...)
}

// Info logs an info message.
func (l *SlogLogger) Info(msg string, fields ...Field) {
	l.logger.InfoContext(l.context(), msg, attrs(fields)...)
}

// Warn logs a warning message.
func (l *SlogLogger) Warn(msg string, fields ...Field) {
	l.logger.WarnContext(l.context(), msg, attrs(fields)...)
}

// Error logs an error message.
func (l *SlogLogger) Error(msg string, fields ...Field) {
	l.logger.ErrorContext(l.context(), msg, attrs(fields)...)
}

// WithFields returns a new logger with the given fields attached to every
// entry.
func (l *SlogLogger) WithFields(fields ...Field) Logger {
	return &SlogLogger{logger: l.logger.With(attrs(fields)...), ctx: l.ctx}
}

// WithContext returns a new logger with the given context.
func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	return &SlogLogger{logger: l.logger, ctx: ctx}
}
