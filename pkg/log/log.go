// Package log configures slog for the flowgrid binaries.
package log

import (
	"log/slog"
	"os"
)

func parseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a text handler at the given level as the process default.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

// NewLogger returns a service-tagged logger independent of the default.
func NewLogger(service, logLevel string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})

	return slog.New(handler).With("service", service)
}

// WithModule tags the default logger with a module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
