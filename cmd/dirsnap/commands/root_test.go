package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// saveFlags snapshots the package-level flag state and restores it when the
// test finishes, since cobra flag variables are sticky across tests.
func saveFlags(t *testing.T) {
	t.Helper()

	origSection := section
	origRules := rulesFile
	origCompress := compress
	origIncremental := incremental
	origDryRun := dryRun
	origVerify := verify
	origCheck := checkPermissions
	origWorkers := workers
	origVerbosity := verbosity
	origQuiet := quiet

	t.Cleanup(func() {
		section = origSection
		rulesFile = origRules
		compress = origCompress
		incremental = origIncremental
		dryRun = origDryRun
		verify = origVerify
		checkPermissions = origCheck
		workers = origWorkers
		verbosity = origVerbosity
		quiet = origQuiet
	})
}

func newTestCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, out
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testRules = `default:
  skip_folders_and_files: [".git"]
  skip_file_extensions: ["tmp"]
python:
  skip_folders_and_files: [".venv", "__pycache__"]
  skip_file_extensions: ["pyc"]
`

func TestRunRoot_EndToEnd(t *testing.T) {
	saveFlags(t)
	rulesFile = writeRules(t, testRules)
	section = "python"
	quiet = true

	src := t.TempDir()
	for rel, content := range map[string]string{
		"main.py":      "print()",
		"cache.pyc":    "bytecode",
		".venv/lib.py": "vendored",
	} {
		path := filepath.Join(src, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	target := t.TempDir()

	cmd, out := newTestCmd()
	if err := runRoot(cmd, []string{src, target}); err != nil {
		t.Fatalf("runRoot failed: %v", err)
	}

	report := out.String()
	if !strings.Contains(report, "copied 1 files") {
		t.Errorf("expected 1 copied file in report, got:\n%s", report)
	}

	dests, err := os.ReadDir(target)
	if err != nil {
		t.Fatal(err)
	}
	if len(dests) != 1 {
		t.Fatalf("expected one destination directory, got %d", len(dests))
	}
	if _, err := os.Stat(filepath.Join(target, dests[0].Name(), "main.py")); err != nil {
		t.Errorf("main.py not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, dests[0].Name(), "cache.pyc")); !os.IsNotExist(err) {
		t.Error("cache.pyc should have been excluded")
	}
}

func TestRunRoot_UnknownSection(t *testing.T) {
	saveFlags(t)
	rulesFile = writeRules(t, testRules)
	section = "golang"
	quiet = true

	cmd, _ := newTestCmd()
	err := runRoot(cmd, []string{t.TempDir(), t.TempDir()})
	if err == nil {
		t.Fatal("expected error for unknown section")
	}
	if !errors.Is(err, errors.ErrSectionNotFound) {
		t.Errorf("expected ErrSectionNotFound, got %v", err)
	}
	if code := errors.CodeFor(err); code != errors.ExitUser {
		t.Errorf("expected exit code %d, got %d", errors.ExitUser, code)
	}
}

func TestRunRoot_MissingRulesFile(t *testing.T) {
	saveFlags(t)
	rulesFile = filepath.Join(t.TempDir(), "nope.yaml")
	quiet = true

	cmd, _ := newTestCmd()
	err := runRoot(cmd, []string{t.TempDir(), t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing rules file")
	}
	if code := errors.CodeFor(err); code != errors.ExitUser {
		t.Errorf("expected exit code %d, got %d", errors.ExitUser, code)
	}
}

func TestRunRoot_MultipleSources(t *testing.T) {
	saveFlags(t)
	rulesFile = writeRules(t, testRules)
	section = "default"
	quiet = true

	src1 := filepath.Join(t.TempDir(), "one")
	src2 := filepath.Join(t.TempDir(), "two")
	for _, src := range []string{src1, src2} {
		if err := os.MkdirAll(src, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(src, "f.txt"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	target := t.TempDir()

	cmd, out := newTestCmd()
	if err := runRoot(cmd, []string{src1, src2, target}); err != nil {
		t.Fatalf("runRoot failed: %v", err)
	}

	dests, err := os.ReadDir(target)
	if err != nil {
		t.Fatal(err)
	}
	if len(dests) != 2 {
		t.Errorf("expected two destination directories, got %d", len(dests))
	}
	if got := strings.Count(out.String(), "copied 1 files"); got != 2 {
		t.Errorf("expected two per-source reports, got %d:\n%s", got, out.String())
	}
}

func TestRunRoot_MissingSourceContinues(t *testing.T) {
	saveFlags(t)
	rulesFile = writeRules(t, testRules)
	section = "default"
	quiet = true

	good := t.TempDir()
	if err := os.WriteFile(filepath.Join(good, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "gone")
	target := t.TempDir()

	cmd, _ := newTestCmd()
	err := runRoot(cmd, []string{missing, good, target})
	if err == nil {
		t.Fatal("expected aggregate error when one source is missing")
	}
	if code := errors.CodeFor(err); code != errors.ExitSystem {
		t.Errorf("expected exit code %d, got %d", errors.ExitSystem, code)
	}

	// The good source was still backed up.
	dests, rerr := os.ReadDir(target)
	if rerr != nil {
		t.Fatal(rerr)
	}
	if len(dests) != 1 {
		t.Errorf("expected the good source to be backed up, found %d destinations", len(dests))
	}
}

func TestRootArgs(t *testing.T) {
	err := rootCmd.Args(rootCmd, []string{"only-one"})
	if err == nil {
		t.Fatal("expected error for a single argument")
	}
	if code := errors.CodeFor(err); code != errors.ExitUser {
		t.Errorf("expected exit code %d, got %d", errors.ExitUser, code)
	}

	if err := rootCmd.Args(rootCmd, []string{"src", "target"}); err != nil {
		t.Errorf("two arguments should be accepted: %v", err)
	}
}
