// Package logging initializes the process-wide slog logger from
// configuration, the way market_maker/internal/bootstrap/logger.go
// wires a level string into a single *slog.Logger.
package logging

import (
	"log/slog"
	"os"
)

// New builds a text-handler slog.Logger at the given level, tagged with
// the supplied fields (typically "pair" and "component").
func New(level string, fields ...any) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler).With(fields...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
