package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Exit codes returned by the dirsnap CLI.
const (
	// ExitSuccess indicates the backup completed with no failures.
	ExitSuccess = 0

	// ExitUser indicates a user-related error (bad arguments, missing
	// config section, malformed pattern).
	ExitUser = 1

	// ExitSystem indicates a system-related error (permissions, I/O,
	// destination collision) that prevented a run from starting or finishing.
	ExitSystem = 2

	// ExitPartial indicates the run completed but one or more entries
	// failed to copy or verify.
	ExitPartial = 3
)

// Sentinel errors for the backup pipeline. Callers match them with
// errors.Is to map failures onto exit codes and summary lines.
var (
	// ErrSectionNotFound indicates the requested rules section does not
	// exist in the loaded configuration.
	ErrSectionNotFound = errors.New("config section not found")

	// ErrBadPattern indicates an exclusion pattern failed to compile.
	ErrBadPattern = errors.New("malformed exclusion pattern")

	// ErrPermission indicates the source is unreadable or the target is
	// unwritable. Fatal for the affected source directory.
	ErrPermission = errors.New("insufficient permissions")

	// ErrDestinationExists indicates the timestamped destination already
	// exists. The pipeline never overwrites a prior backup.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrCycle indicates traversal detected a directory cycle (aliased
	// directory identities). Recorded per-subtree, not fatal.
	ErrCycle = errors.New("directory cycle detected")

	// ErrNothingCopied indicates every attempted copy failed.
	ErrNothingCopied = errors.New("no files could be copied")

	// ErrArchive indicates the compression stage failed. The uncompressed
	// backup tree remains valid and is kept.
	ErrArchive = errors.New("archive creation failed")
)

// Re-exports so pipeline packages can import this package as their only
// errors dependency. All delegate to cockroachdb/errors, which preserves
// wrapped chains for Is/As.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// ExitError wraps an error with an exit code and optional suggestion for
// the CLI. It implements the error interface and supports unwrapping via
// errors.Unwrap.
type ExitError struct {
	// Err is the underlying error that caused the exit.
	Err error

	// Code is the exit code to return to the operating system.
	Code int

	// Suggestion is an optional actionable suggestion for the user.
	Suggestion string
}

// NewExitError creates an ExitError with the given underlying error and code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// NewUserError creates an ExitError with ExitUser code and a suggestion.
func NewUserError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitUser, Suggestion: suggestion}
}

// NewSystemError creates an ExitError with ExitSystem code and a suggestion.
func NewSystemError(err error, suggestion string) *ExitError {
	return &ExitError{Err: err, Code: ExitSystem, Suggestion: suggestion}
}

// NewConfigError creates an ExitError with ExitUser code and a standard
// suggestion pointing at the rules file.
func NewConfigError(err error) *ExitError {
	return &ExitError{
		Err:        err,
		Code:       ExitUser,
		Suggestion: "Run: dirsnap init (writes a starter rules file)",
	}
}

// Error returns the message from the underlying error, or a generic message
// when the underlying error is nil.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As
// to examine the chain.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// CodeFor maps an error onto a process exit code. An ExitError in the chain
// wins; otherwise the sentinel taxonomy decides between user and system
// failures.
func CodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, ErrSectionNotFound), errors.Is(err, ErrBadPattern):
		return ExitUser
	default:
		return ExitSystem
	}
}
