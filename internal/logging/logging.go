package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// New returns a structured logger at info level with secret redaction.
func New() *slog.Logger {
	return NewWithLevel("info", "text")
}

// NewWithLevel builds a logger for the given level and format. Format
// "pretty" uses the tint handler for local development; anything else
// falls back to the plain text handler.
func NewWithLevel(level, format string) *slog.Logger {
	lvl := parseLevel(level)

	if strings.ToLower(format) == "pretty" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:       lvl,
			ReplaceAttr: redactSecrets,
		}))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: redactSecrets,
	}))
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

func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		a.Value = slog.StringValue("[redacted]")
	}
	return a
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "api_key") || strings.Contains(k, "pass")
}
