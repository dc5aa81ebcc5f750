package tenf

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithBackend adds a backend field to the logger.
func (l *Logger) WithBackend(kind string) *Logger {
	return &Logger{
		Logger: l.Logger.With("backend", kind),
	}
}

// LogRead logs a read operation.
func (l *Logger) LogRead(ctx context.Context, key string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"key", key,
			"bytes", size,
		)
	}
}

// LogWrite logs a write operation.
func (l *Logger) LogWrite(ctx context.Context, key string, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"key", key,
			"bytes", size,
		)
	}
}

// LogList logs a list operation.
func (l *Logger) LogList(ctx context.Context, prefix string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "list failed",
			"prefix", prefix,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "list completed",
			"prefix", prefix,
			"count", count,
		)
	}
}

// LogDelete logs a delete operation. Deleting a missing record is logged at
// Debug level; it is a caller-visible outcome, not a backend failure.
func (l *Logger) LogDelete(ctx context.Context, key string, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "delete completed",
			"key", key,
		)
	case IsNotFound(err):
		l.DebugContext(ctx, "delete skipped: record not found",
			"key", key,
		)
	default:
		l.ErrorContext(ctx, "delete failed",
			"key", key,
			"error", err,
		)
	}
}

// LogExists logs an existence check at debug level; failures at error.
func (l *Logger) LogExists(ctx context.Context, key string, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "exists failed",
			"key", key,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "exists completed",
		"key", key,
		"found", found,
	)
}
