package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatText is the human-oriented handler with TTY colors.
	FormatText Format = "text"
	// FormatJSON emits one JSON record per line.
	FormatJSON Format = "json"
)

// Config describes the logger a backup run writes through.
type Config struct {
	// Level is the minimum level that gets emitted.
	Level slog.Level
	// Format selects text or JSON output.
	Format Format
	// Output receives log records; nil means os.Stderr.
	Output io.Writer
}

// New builds the pipeline logger. An unrecognized format falls back to text,
// matching the --log-format flag's default.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	if cfg.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(NewHandler(out, opts))
}

// NewDiscard returns a logger that drops everything. The engine falls back to
// it when given no logger; the CLI uses it for --quiet.
func NewDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWriter routes handler output through t.Log so pipeline records show up
// attached to the test that produced them.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// ForTest returns a debug-level text logger writing to t's log, visible only
// on failure or with -v.
func ForTest(t *testing.T) *slog.Logger {
	t.Helper()
	return New(Config{
		Level:  slog.LevelDebug,
		Format: FormatText,
		Output: &testWriter{t: t},
	})
}
