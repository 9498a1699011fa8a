// Package logging wraps zerolog with the setup shared by every binary.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so components share one handle type.
type Logger struct {
	zerolog.Logger
}

// New creates a logger at the given level. format "json" writes one JSON
// object per line; anything else writes human readable console output.
func New(level, format string) *Logger {
	var out io.Writer = os.Stderr
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithOutput(level, out)
}

// NewWithOutput creates a logger writing to w.
func NewWithOutput(level string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &Logger{Logger: logger}
}

// NewSilent creates a logger that discards all output.
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.New(io.Discard)}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With().Str("component", name).Logger()}
}
