// Package observability provides KotaDB's structured logging and trace-id
// propagation. It is built explicitly at startup and passed by reference
// rather than read off a package-level global, the way the rest of this
// codebase's components are — a Logger is a value you hold, not ambient
// state you reach for.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog with KotaDB's conventions: every line is structured
// key=value text, and every call site that has a trace id in its context
// gets it attached automatically.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger writing structured key=value lines to w. Pass
// os.Stderr for normal operation; quiet mode (the CLI's --quiet flag) raises
// the level so only error lines are written.
func New(w *os.File, quiet bool) *Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(handler)}
}

type traceIDKey struct{}

// NewTraceID mints a fresh trace id for a request or ingestion run.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying traceID, retrievable by
// TraceIDFromContext and automatically attached to every log line emitted
// through that context by Logger's *Context methods.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace id attached to ctx, or "" if none.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey{}).(string)
	return v
}

func (l *Logger) withTrace(ctx context.Context) *slog.Logger {
	if id := TraceIDFromContext(ctx); id != "" {
		return l.base.With("trace_id", id)
	}
	return l.base
}

// InfoContext logs an informational message, attaching ctx's trace id.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.withTrace(ctx).Info(msg, args...)
}

// WarnContext logs a warning, attaching ctx's trace id.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.withTrace(ctx).Warn(msg, args...)
}

// ErrorContext logs an error, attaching ctx's trace id.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.withTrace(ctx).Error(msg, args...)
}

// With returns a Logger that always includes the given key/value pairs,
// for attaching e.g. a component name to every line a subsystem emits.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...)}
}
