package ufo

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ufo-specific event helpers.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// WithObject tags every record with an object id.
func (l *Logger) WithObject(id ObjectID) *Logger {
	return &Logger{Logger: l.Logger.With("object", uint64(id))}
}

// LogCreate logs object creation.
func (l *Logger) LogCreate(ctx context.Context, name string, elements uint64, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create object failed",
			"name", name,
			"elements", elements,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "object created",
		"name", name,
		"elements", elements,
		"reserved_bytes", bytes,
	)
}

// LogDestroy logs object destruction.
func (l *Logger) LogDestroy(ctx context.Context, committed int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy object failed", "error", err)
		return
	}
	l.InfoContext(ctx, "object destroyed", "committed_bytes", committed)
}

// LogPopulate logs one population call.
func (l *Logger) LogPopulate(ctx context.Context, start, end uint64, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "populate failed",
			"start", start,
			"end", end,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "populate completed",
		"start", start,
		"end", end,
		"duration", d,
	)
}

// LogWriteBack logs one write-back call.
func (l *Logger) LogWriteBack(ctx context.Context, start, end uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write-back failed",
			"start", start,
			"end", end,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "write-back completed",
		"start", start,
		"end", end,
	)
}

// LogShutdown logs an instance shutdown.
func (l *Logger) LogShutdown(ctx context.Context, live int, awaitObjects bool, err error) {
	if err != nil {
		l.WarnContext(ctx, "shutdown completed with errors",
			"live_objects", live,
			"await_objects", awaitObjects,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "shutdown started",
		"live_objects", live,
		"await_objects", awaitObjects,
	)
}
