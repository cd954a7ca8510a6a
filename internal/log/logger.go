package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger bound to one component. The component attribute
// is replaced, not repeated, when the logger is re-scoped.
type Logger struct {
	*slog.Logger
	root      *slog.Logger
	component string
	attrs     []any
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// Handler overrides the default text handler on stdout.
	Handler slog.Handler
}

// DefaultConfig logs text at info level as the "app" component.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Component: ComponentApp}
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
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

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return build(slog.New(handler), config.Component, nil)
}

func build(root *slog.Logger, component string, attrs []any) *Logger {
	l := root
	if component != "" {
		l = l.With(FieldComponent, component)
	}
	if len(attrs) > 0 {
		l = l.With(attrs...)
	}
	return &Logger{Logger: l, root: root, component: component, attrs: attrs}
}

// With returns a logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	attrs := append(append([]any(nil), l.attrs...), args...)
	return build(l.root, l.component, attrs)
}

// WithComponent re-scopes the logger, keeping attributes added with With.
func (l *Logger) WithComponent(component string) *Logger {
	return build(l.root, component, l.attrs)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
