package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// createLogger builds the process logger: colorized text on stderr for
// terminals, JSON for everything else.
func createLogger(logLevel, logFormat string) *slog.Logger {
	level := parseLogLevel(logLevel)

	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: level,
	}))
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
