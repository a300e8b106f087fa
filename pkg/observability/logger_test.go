package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/platinummonkey/storefront/pkg/contextkeys"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeLine(t, &buf)
		if entry["level"] != "info" {
			t.Errorf("Expected level info, got %v", entry["level"])
		}
		if entry["message"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["message"])
		}
	})

	t.Run("warn and error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		logger.Error("error message")
		if lines := strings.Count(buf.String(), "\n"); lines != 2 {
			t.Errorf("Expected 2 lines, got %d", lines)
		}
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("key", "value").
		WithFields(map[string]interface{}{"count": 42}).
		WithError(errors.New("boom")).
		Error("something went wrong")

	entry := decodeLine(t, &buf)
	if entry["key"] != "value" {
		t.Errorf("Expected field 'key' to be 'value', got %v", entry["key"])
	}
	if entry["count"] != float64(42) {
		t.Errorf("Expected field 'count' to be 42, got %v", entry["count"])
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error field 'boom', got %v", entry["error"])
	}
}

func TestLogger_WithNilError(t *testing.T) {
	logger := NewNopLogger()
	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("value is %d", 7)
	if entry := decodeLine(t, &buf); entry["message"] != "value is 7" {
		t.Errorf("Unexpected message %v", entry["message"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		" warn ":  WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"verbose": InfoLevel,
		"":        InfoLevel,
	}
	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogLevel_String(t *testing.T) {
	if DebugLevel.String() != "DEBUG" || ErrorLevel.String() != "ERROR" {
		t.Errorf("Unexpected level names %s %s", DebugLevel, ErrorLevel)
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")
	ctx = contextkeys.WithAdminID(ctx, 42)

	FromContext(ctx).Info("handled")

	entry := decodeLine(t, &buf)
	if entry["request_id"] != "req-123" {
		t.Errorf("Expected request_id req-123, got %v", entry["request_id"])
	}
	if entry["admin_id"] != float64(42) {
		t.Errorf("Expected admin_id 42, got %v", entry["admin_id"])
	}

	if GetLogger(context.Background()) == nil {
		t.Error("GetLogger should fall back to a default logger")
	}
}

func TestRedactToken(t *testing.T) {
	if got := RedactToken("short"); got != "[redacted]" {
		t.Errorf("Expected short token fully redacted, got %q", got)
	}
	token := "eyJhbGciOiJIUzI1NiJ9.payload.signature"
	got := RedactToken(token)
	if strings.Contains(got, "payload") || !strings.HasPrefix(got, "eyJhbGci") {
		t.Errorf("Unexpected redaction %q", got)
	}
}
