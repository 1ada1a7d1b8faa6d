// Package logging provides the structured logger used across hitchain.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents logging verbosity levels
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts Level to slog.Level
func (l Level) ToSlogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

type Logger struct {
	*slog.Logger
	level Level
}

// New returns a logger writing colored text to w.
func New(w io.Writer, level Level) *Logger {
	handler := NewColorHandler(w, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	return &Logger{Logger: slog.New(handler), level: level}
}

// NewJSON returns a logger writing JSON lines to w.
func NewJSON(w io.Writer, level Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level.ToSlogLevel(),
		ReplaceAttr: maskAttr,
	})
	return &Logger{Logger: slog.New(handler), level: level}
}

// NewStderr is the CLI logger.
func NewStderr(level Level) *Logger {
	return New(os.Stderr, level)
}

// Discard returns a logger that drops everything. Library components use it
// when no logger is supplied.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), level: LevelError}
}

func (l *Logger) Level() Level {
	return l.level
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
	}
}

// WithSpec returns a logger tagged with the spec name
func (l *Logger) WithSpec(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("spec", name),
		level:  l.level,
	}
}

// WithChain returns a logger tagged with the chain name
func (l *Logger) WithChain(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("chain", name),
		level:  l.level,
	}
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return &Logger{
		Logger: l.Logger.With("method", method, "url", url),
		level:  l.level,
	}
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}
