package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the context, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	if d := defaultLogger.Load(); d != nil {
		return d.WithComponent("unknown")
	}
	def := slog.Default()
	return &Logger{
		Logger:    def,
		component: "unknown",
		base:      def.Handler(),
	}
}

// WithComponent returns a context whose logger is tagged with component.
func WithComponent(ctx context.Context, component string) context.Context {
	return WithLogger(ctx, FromContext(ctx).WithComponent(component))
}
