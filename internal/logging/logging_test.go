package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatText,
		Output: &buf,
	})

	logger.Info("copied", "path", "a/b.txt", "bytes", 42)

	out := buf.String()
	if !strings.Contains(out, "copied") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "path=a/b.txt") {
		t.Errorf("output missing attribute: %q", out)
	}
	if !strings.Contains(out, "bytes=42") {
		t.Errorf("output missing attribute: %q", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelWarn,
		Format: FormatText,
		Output: &buf,
	})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be emitted")
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  slog.LevelInfo,
		Format: FormatJSON,
		Output: &buf,
	})

	logger.Info("archived", "entries", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if record["msg"] != "archived" {
		t.Errorf("msg = %v, want archived", record["msg"])
	}
	if record["entries"] != float64(3) {
		t.Errorf("entries = %v, want 3", record["entries"])
	}
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Output: &buf})

	logger.With("source", "/tmp/proj").Info("starting")

	if !strings.Contains(buf.String(), "source=/tmp/proj") {
		t.Errorf("derived logger missing attribute: %q", buf.String())
	}
}

func TestNewDiscard(t *testing.T) {
	logger := NewDiscard()
	// Must not panic and must accept all levels silently.
	logger.Debug("a")
	logger.Error("b")
}

func TestSupportsColor_Buffer(t *testing.T) {
	// A plain buffer is not a TTY, so no color.
	if SupportsColor(&bytes.Buffer{}) {
		t.Error("a bytes.Buffer should not support color")
	}
}
