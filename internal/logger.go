package internal

import (
	"io"
	"log/slog"
	"strings"
)

// redactedKeys are attribute keys whose values never reach the log output.
var redactedKeys = []string{"password", "secret", "token", "authorization", "cookie"}

// NewLogger returns a text logger in development and a JSON logger elsewhere.
// Attributes named like credentials are replaced with "[REDACTED]".
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		AddSource:   env == "development" && level == "debug",
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	key := strings.ToLower(a.Key)
	for _, k := range redactedKeys {
		if strings.Contains(key, k) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}
