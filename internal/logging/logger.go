// Package logging provides structured logging configuration using log/slog.
//
// Export runs attach their run id to the context with WithRun, so every log
// entry written through FromContext during a run carries run_id and kind.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format and
// returns it. A nil writer means stderr, which keeps stdout free for
// command output.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string, w io.Writer) *slog.Logger {
	logger := New(level, format, w)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without touching the global default.
func New(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a string log level to slog.Level.
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

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type fieldsKey struct{}

// WithFields returns a context whose FromContext logger includes args.
// Fields accumulate across calls.
func WithFields(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey{}).([]any)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(fields, prev...)
	fields = append(fields, args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// WithRun tags the context with an export run id and entity kind.
//
// Usage:
//
//	ctx = logging.WithRun(ctx, runID, "release")
//	logging.FromContext(ctx).Info("export started")
func WithRun(ctx context.Context, runID, kind string) context.Context {
	return WithFields(ctx, "run_id", runID, "kind", kind)
}

// FromContext returns the default logger enriched with the fields stored in
// ctx.
func FromContext(ctx context.Context) *slog.Logger {
	return With(ctx, slog.Default())
}

// With enriches base with the fields stored in ctx.
func With(ctx context.Context, base *slog.Logger) *slog.Logger {
	if fields, ok := ctx.Value(fieldsKey{}).([]any); ok && len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
