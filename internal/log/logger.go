package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger bound to a component name. The embedded logger
// carries the component attribute; base does not, so switching components
// never stacks two of them.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds logger configuration. Handler, when set, wins over Format
// and Output.
type Config struct {
	Level     slog.Level
	Component string
	Format    string
	Output    io.Writer
	Handler   slog.Handler
}

// DefaultConfig logs text at info level to stdout
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Format:    FormatText,
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if strings.EqualFold(config.Format, FormatJSON) {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}
	return bind(slog.New(handler), config.Component)
}

func bind(base *slog.Logger, component string) *Logger {
	l := base
	if component != "" {
		l = base.With(FieldComponent, component)
	}
	return &Logger{Logger: l, base: base, component: component}
}

// With returns a logger carrying args on every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base.With(args...),
		component: l.component,
	}
}

// WithComponent rebinds the logger to another component, keeping attributes
// added through With.
func (l *Logger) WithComponent(component string) *Logger {
	return bind(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}

// ParseLevel maps LOG_LEVEL style strings to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return New(Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
}

// SetDefault installs logger as the slog default
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}
