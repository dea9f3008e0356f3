package trellis

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with trellis-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithIndex adds an index_id field to the logger.
func (l *Logger) WithIndex(indexID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index_id", indexID),
	}
}

// WithDump adds a dump path field to the logger.
func (l *Logger) WithDump(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dump", path),
	}
}

// LogSkippedElement logs an element skipped because its type/label pair is
// not part of the supported vocabulary.
func (l *Logger) LogSkippedElement(ctx context.Context, indexID, typ, label string, ordinal int) {
	l.WarnContext(ctx, "skipping unsupported element",
		"index_id", indexID,
		"type", typ,
		"label", label,
		"element", ordinal,
	)
}

// LogIngest logs the outcome of one dump ingestion.
func (l *Logger) LogIngest(ctx context.Context, indexID string, vertices, edges int64, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingestion aborted",
			"index_id", indexID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingestion sealed",
			"index_id", indexID,
			"vertices", vertices,
			"edges", edges,
			"skipped", skipped,
		)
	}
}

// LogDelete logs an index deletion.
func (l *Logger) LogDelete(ctx context.Context, indexID string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"index_id", indexID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index deleted",
			"index_id", indexID,
		)
	}
}
