package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: redactSecrets,
	}))

	tests := []struct {
		key    string
		value  string
		should bool
	}{
		{"api_key", "secret123", true},
		{"API_KEY", "key456", true},
		{"password", "pass789", true},
		{"auth_token", "tok", true},
		{"secret", "mysecret", true},
		{"endpoint", "https://example.com", false},
		{"tx", "0xabc", false},
		{"block", "42", false},
	}

	for _, tt := range tests {
		buf.Reset()
		logger.Info("test", tt.key, tt.value)
		output := buf.String()

		if tt.should {
			if !strings.Contains(output, "[redacted]") {
				t.Errorf("key %q should be redacted, output: %s", tt.key, output)
			}
			if strings.Contains(output, tt.value) {
				t.Errorf("key %q value %q should not appear, output: %s", tt.key, tt.value, output)
			}
		} else {
			if strings.Contains(output, "[redacted]") {
				t.Errorf("key %q should not be redacted, output: %s", tt.key, output)
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("key %q value %q should appear, output: %s", tt.key, tt.value, output)
			}
		}
	}
}

func TestLogLevelsAndFormats(t *testing.T) {
	tests := []struct {
		level  string
		format string
	}{
		{"debug", "text"},
		{"info", "text"},
		{"warn", "pretty"},
		{"warning", "text"},
		{"error", "pretty"},
		{"invalid", "text"},
		{"", ""},
	}

	for _, tt := range tests {
		logger := NewWithLevel(tt.level, tt.format)
		if logger == nil {
			t.Errorf("NewWithLevel(%q, %q) returned nil", tt.level, tt.format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != slog.LevelDebug {
		t.Errorf("debug level mismatch")
	}
	if parseLevel("warning") != slog.LevelWarn {
		t.Errorf("warning level mismatch")
	}
	if parseLevel("nonsense") != slog.LevelInfo {
		t.Errorf("unknown levels default to info")
	}
}
