package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is the configured verbosity, independent of slog.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

// String returns the config spelling of the level, as accepted by ParseLevel.
func (l LogLevel) String() string {
	if l < LogLevelDebug || l > LogLevelError {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a config string (debug, info, warn, error) to a LogLevel.
// Unknown values yield LogLevelInfo and ok=false.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, true
	case "info", "":
		return LogLevelInfo, true
	case "warn", "warning":
		return LogLevelWarn, true
	case "error":
		return LogLevelError, true
	default:
		return LogLevelInfo, false
	}
}

// Logger defines the minimal logging interface used across the simulator.
// Arguments are slog-style key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ChatLogger wraps slog.Logger with component and engine scoping.
// With* methods return copies; the receiver is never mutated.
type ChatLogger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
	engineID  string
	attrs     []slog.Attr
}

// LoggerConfig configures construction of a ChatLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json or text
	Output    io.Writer
	AddSource bool
	Component string
	EngineID  string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stderr}
}

// NewLogger builds a ChatLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *ChatLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return &ChatLogger{logger: slog.New(handler), level: cfg.Level, component: cfg.Component, engineID: cfg.EngineID}
}

// NewSlogLogger creates a ChatLogger with the given level, format and source flag.
func NewSlogLogger(level LogLevel, format string, addSource bool) *ChatLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *ChatLogger) clone() *ChatLogger {
	nl := *l
	nl.attrs = append([]slog.Attr(nil), l.attrs...)
	return &nl
}

// With adds a key/value attribute that is attached to every log entry.
func (l *ChatLogger) With(key string, value any) *ChatLogger {
	nl := l.clone()
	nl.attrs = append(nl.attrs, slog.Any(key, value))
	return nl
}

// WithComponent sets the logical component (scheduler, engine, server, ...).
func (l *ChatLogger) WithComponent(c string) *ChatLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithEngine attaches the engine instance id.
func (l *ChatLogger) WithEngine(id string) *ChatLogger {
	nl := l.clone()
	nl.engineID = id
	return nl
}

// Slog exposes the underlying *slog.Logger for libraries that want one.
func (l *ChatLogger) Slog() *slog.Logger { return l.logger }

func (l *ChatLogger) buildAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2+2)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.engineID != "" {
		attrs = append(attrs, slog.String("engine_id", l.engineID))
	}
	attrs = append(attrs, l.attrs...)
	for i := 0; i < len(args); i++ {
		switch a := args[i].(type) {
		case slog.Attr:
			attrs = append(attrs, a)
		case string:
			if i+1 < len(args) {
				attrs = append(attrs, slog.Any(a, args[i+1]))
				i++
			} else {
				attrs = append(attrs, slog.String("!BADKEY", a))
			}
		default:
			attrs = append(attrs, slog.Any("!BADKEY", a))
		}
	}
	return attrs
}

func (l *ChatLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.buildAttrs(args)...)
}

// Debug logs at debug level.
func (l *ChatLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *ChatLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *ChatLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *ChatLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// NoOpLogger discards everything. It is the default wherever a Logger is optional.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any) {}
func (NoOpLogger) Warn(string, ...any) {}
func (NoOpLogger) Error(string, ...any) {}

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
