// Package permissions validates filesystem access before and during a
// backup run. The preflight checks fail fast, before any traversal begins,
// so a run never creates a destination it cannot fill.
package permissions

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// VerifySource checks that the source root exists and is readable, and for
// directories that it is traversable. A failure here is fatal for the run
// on this source.
func VerifySource(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Newf("source directory %s does not exist", root)
		}
		if os.IsPermission(err) {
			return errors.Wrapf(errors.ErrPermission, "source %s: %v", root, err)
		}
		return errors.Wrapf(err, "stat source %s", root)
	}

	f, err := os.Open(root)
	if err != nil {
		if os.IsPermission(err) {
			return errors.Wrapf(errors.ErrPermission, "no read permission for source %s", root)
		}
		return errors.Wrapf(err, "opening source %s", root)
	}
	defer f.Close()

	if info.IsDir() {
		// Reading one entry proves both read and search permission.
		if _, err := f.ReadDir(1); err != nil && err != io.EOF {
			if os.IsPermission(err) {
				return errors.Wrapf(errors.ErrPermission, "source %s is not traversable", root)
			}
			return errors.Wrapf(err, "reading source %s", root)
		}
	}

	return nil
}

// VerifyTarget checks that the target directory is writable and traversable.
// When create is true and the directory is absent, it is created; otherwise
// the parent's writability is probed without mutating anything.
func VerifyTarget(dir string, create bool) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return errors.Newf("target %s is not a directory", dir)
		}
		return probeWrite(dir)

	case os.IsNotExist(err):
		if !create {
			// Dry run: the parent must be writable but nothing is created.
			parent := filepath.Dir(dir)
			if _, perr := os.Stat(parent); perr != nil {
				return errors.Wrapf(perr, "target parent %s", parent)
			}
			return probeWrite(parent)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			if os.IsPermission(err) {
				return errors.Wrapf(errors.ErrPermission, "cannot create target %s", dir)
			}
			return errors.Wrapf(err, "creating target %s", dir)
		}
		return nil

	case os.IsPermission(err):
		return errors.Wrapf(errors.ErrPermission, "target %s: %v", dir, err)

	default:
		return errors.Wrapf(err, "stat target %s", dir)
	}
}

// probeWrite proves write and search permission on dir by creating and
// removing a temp file. This works uniformly across platforms where mode
// bits alone would lie (ACLs, network filesystems).
func probeWrite(dir string) error {
	f, err := os.CreateTemp(dir, ".dirsnap-probe-*")
	if err != nil {
		if os.IsPermission(err) {
			return errors.Wrapf(errors.ErrPermission, "no write permission for target %s", dir)
		}
		return errors.Wrapf(err, "probing target %s", dir)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}

// Checker performs per-entry read probes during traversal, for the
// --check-permissions mode. Results are cached per path since workers
// frequently revisit the same directories.
type Checker struct {
	mu    sync.Mutex
	cache map[string]error
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{cache: make(map[string]error)}
}

// CheckRead reports whether path can be opened for reading. The result is
// cached; concurrent callers for the same path share one probe.
func (c *Checker) CheckRead(path string) error {
	c.mu.Lock()
	if err, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	var result error
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			result = errors.Wrapf(errors.ErrPermission, "no read permission for %s", path)
		} else {
			result = errors.Wrapf(err, "opening %s", path)
		}
	} else {
		f.Close()
	}

	c.mu.Lock()
	c.cache[path] = result
	c.mu.Unlock()
	return result
}
