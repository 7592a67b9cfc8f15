// Package log wraps log/slog with component tagging, standard field names
// and context propagation.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger wraps slog.Logger with a component name attached to every record.
type Logger struct {
	*slog.Logger
	component string
	// base is the handler before the component and attrs were applied.
	base  slog.Handler
	attrs []any
}

var defaultLogger atomic.Pointer[Logger]

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	Component string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Format:    "text",
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if strings.EqualFold(config.Format, "json") {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}
	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return build(handler, component, nil)
}

func build(base slog.Handler, component string, attrs []any) *Logger {
	logger := slog.New(base).With(FieldComponent, component)
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return &Logger{Logger: logger, component: component, base: base, attrs: attrs}
}

// Setup builds the process logger from textual level and format settings and
// installs it as the slog default.
func Setup(level, format string, out io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg := DefaultConfig()
	cfg.Level = lvl
	cfg.Format = format
	if out != nil {
		cfg.Output = out
	}
	logger := New(cfg)
	SetDefault(logger)
	return logger, nil
}

// ParseLevel maps debug/info/warn/error onto slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
		base:      l.base,
		attrs:     attrs,
	}
}

// WithComponent returns a logger for a different component sharing the
// same handler and attributes. The component key appears once.
func (l *Logger) WithComponent(component string) *Logger {
	return build(l.base, component, l.attrs)
}

// Fields returns a logger carrying every field of f.
func (l *Logger) Fields(f LogFields) *Logger {
	return l.With(f.ToSlice()...)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	defaultLogger.Store(logger)
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
