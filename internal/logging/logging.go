// Package logging builds the slog.Logger shared by the taskboard binaries.
package logging

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. The "json" format emits one JSON object
// per record; anything else uses charmbracelet/log's human-readable console
// output.
func New(w io.Writer, level, format, prefix string) *slog.Logger {
	lvl := ParseLevel(level)
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(lvl),
		ReportTimestamp: true,
		Prefix:          prefix,
	})
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
