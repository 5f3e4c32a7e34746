// Package logging builds the zerolog loggers shared by the CLI, the batch
// runner and the MCP server.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goodmattg/ultrasound-frames/internal/fault"
)

// ParseLevel maps a level name ("debug", "info", "warn", "error", "disabled")
// to a zerolog level. An empty name means info.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fault.Misconfigured("unknown log level %q", name)
	}
	return level, nil
}

// New returns a JSON logger writing to w with timestamps.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Console returns a human-readable logger writing to w, normally stderr so
// that stdout is left for command output.
func Console(w io.Writer, level zerolog.Level) zerolog.Logger {
	return New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: true}, level)
}

// Component tags every event of l with the subsystem name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Nop discards everything. Library types default to it.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
