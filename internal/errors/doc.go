// Package errors provides error handling conventions for the dirsnap CLI.
//
// This package defines sentinel errors for the backup pipeline's failure
// taxonomy, an ExitError type for CLI exit code handling, and exit code
// constants.
//
// # Sentinel Errors
//
// Sentinel errors allow callers to check for specific failure conditions
// using [errors.Is]:
//
//	if errors.Is(err, dserrors.ErrSectionNotFound) {
//	    // handle missing config section
//	}
//
// # Exit Codes
//
//   - ExitSuccess (0): backup completed with no failures
//   - ExitUser (1): user-related error (arguments, config)
//   - ExitSystem (2): fatal system error (permissions, I/O, collision)
//   - ExitPartial (3): backup completed but some entries failed
//
// # ExitError
//
// [ExitError] wraps an underlying error with an exit code and an optional
// suggestion. It supports error unwrapping via [errors.Unwrap] and
// [errors.As]:
//
//	var exitErr *dserrors.ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
package errors
