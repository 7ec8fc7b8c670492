package rules

import (
	"testing"

	"github.com/jtarrant/dirsnap/internal/errors"
)

func mustCompile(t *testing.T, names, exts []string) *Set {
	t.Helper()
	s, err := Compile("test", names, exts)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return s
}

func TestShouldSkip_LiteralNames(t *testing.T) {
	s := mustCompile(t, []string{".venv", "node_modules", "target"}, nil)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"/src/.venv", true, true},
		{"/src/node_modules", true, true},
		{"/src/target", true, true},
		{"/src/targets", true, false},  // literal match is exact
		{"/src/.venv2", true, false},
		{"/src/Node_modules", true, false}, // case-sensitive
		{"/src/main.go", false, false},
	}

	for _, tt := range tests {
		if got := s.ShouldSkip(tt.path, tt.isDir); got != tt.want {
			t.Errorf("ShouldSkip(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestShouldSkip_Wildcards(t *testing.T) {
	s := mustCompile(t, []string{"temp-*", "cache?"}, nil)

	tests := []struct {
		name string
		want bool
	}{
		{"temp-1", true},
		{"temp-foo", true},
		{"temporary", false}, // prefix-exact glob semantics
		{"atemp-1", false},
		{"cache1", true},
		{"cacheXY", false}, // ? matches exactly one rune
	}

	for _, tt := range tests {
		if got := s.ShouldSkip(tt.name, true); got != tt.want {
			t.Errorf("ShouldSkip(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldSkip_Extensions(t *testing.T) {
	s := mustCompile(t, nil, []string{"pyc", "*.log", "tmp*"})

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"a.pyc", false, true},
		{"deep/nested/b.pyc", false, true},
		{"server.log", false, true},  // *.log normalized to log
		{"notes.tmp1", false, true},  // glob extension
		{"a.py", false, false},
		{"pyc", false, false},       // no extension at all
		{".pyc", false, false},      // dotfile, not a suffix
		{"dir.pyc", true, false},    // extension rules never match directories
		{"a.PYC", false, false},     // case-sensitive
	}

	for _, tt := range tests {
		if got := s.ShouldSkip(tt.path, tt.isDir); got != tt.want {
			t.Errorf("ShouldSkip(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestShouldSkip_OrderIndependent(t *testing.T) {
	s := mustCompile(t, []string{"build"}, []string{"o"})

	// Same answer no matter how often or in what order entries are checked.
	for range 3 {
		if !s.ShouldSkip("x/build", true) {
			t.Error("build directory should be skipped")
		}
		if !s.ShouldSkip("y/main.o", false) {
			t.Error("main.o should be skipped")
		}
		if s.ShouldSkip("y/main.c", false) {
			t.Error("main.c should not be skipped")
		}
	}
}

func TestCompile_BadPattern(t *testing.T) {
	_, err := Compile("default", []string{"[unclosed"}, nil)
	if err == nil {
		t.Fatal("expected error for malformed glob")
	}
	if !errors.Is(err, errors.ErrBadPattern) {
		t.Errorf("error = %v, want ErrBadPattern", err)
	}

	_, err = Compile("default", nil, []string{"*.{bad"})
	if err == nil {
		t.Fatal("expected error for malformed extension glob")
	}
}
