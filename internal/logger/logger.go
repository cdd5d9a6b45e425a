// README: Process-wide structured logger (slog) with JSON/text handlers.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the default slog logger from the BEACON_LOG_LEVEL and
// BEACON_LOG_FORMAT environment variables and returns it.
func Init() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("BEACON_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("BEACON_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
