package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("honors the requested level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "debug")

		logger.Debug("visible at debug")
		if !strings.Contains(buf.String(), "visible at debug") {
			t.Fatalf("expected the debug line emitted, got %q", buf.String())
		}
	})

	t.Run("falls back to info for unknown levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(&buf, "loud")

		logger.Debug("suppressed")
		logger.Info("kept")

		out := buf.String()
		if strings.Contains(out, "suppressed") {
			t.Fatalf("expected debug suppressed at info level, got %q", out)
		}
		if !strings.Contains(out, "kept") {
			t.Fatalf("expected info emitted, got %q", out)
		}
	})

	t.Run("emits JSON lines", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, "info").Info("hello", "key", "value")

		line := buf.String()
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"key":"value"`) {
			t.Fatalf("expected a JSON line, got %q", line)
		}
	})
}

func TestContextLogger(t *testing.T) {
	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatal("expected the attached logger back")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatal("expected nil for a bare context")
	}
	if got := ContextWithLogger(context.Background(), nil); got != context.Background() {
		t.Fatal("expected a nil logger to leave the context untouched")
	}
}
