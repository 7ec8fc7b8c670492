package errors

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestExitError_Unwrap(t *testing.T) {
	base := ErrPermission
	wrapped := NewSystemError(Wrap(base, "checking source"), "fix permissions")

	if !errors.Is(wrapped, ErrPermission) {
		t.Error("errors.Is should find the sentinel through ExitError")
	}

	var exitErr *ExitError
	if !errors.As(wrapped, &exitErr) {
		t.Fatal("errors.As should find the ExitError")
	}
	if exitErr.Code != ExitSystem {
		t.Errorf("Code = %d, want %d", exitErr.Code, ExitSystem)
	}
	if exitErr.Suggestion != "fix permissions" {
		t.Errorf("Suggestion = %q", exitErr.Suggestion)
	}
}

func TestExitError_NilUnderlying(t *testing.T) {
	e := NewExitError(nil, ExitPartial)
	if e.Error() != "exit code 3" {
		t.Errorf("Error() = %q, want %q", e.Error(), "exit code 3")
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"missing section", Wrap(ErrSectionNotFound, "loading rules"), ExitUser},
		{"bad pattern", Wrapf(ErrBadPattern, "pattern %q", "[x"), ExitUser},
		{"permission", Wrap(ErrPermission, "source"), ExitSystem},
		{"collision", ErrDestinationExists, ExitSystem},
		{"explicit exit error", NewExitError(New("boom"), ExitPartial), ExitPartial},
		{"unknown", New("something else"), ExitSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeFor(tt.err); got != tt.want {
				t.Errorf("CodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
