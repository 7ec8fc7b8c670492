// Package walker implements pruned depth-first traversal of a source tree.
//
// Directories whose names match an exclusion rule are pruned before descent:
// their subtrees are never opened, so exclusion is transitive and bounded in
// I/O cost. Visited directory identities are tracked so aliased directories
// (bind mounts, symlink games) cannot cause infinite traversal.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jtarrant/dirsnap/internal/errors"
	"github.com/jtarrant/dirsnap/internal/rules"
)

// Entry is one candidate produced by traversal. File entries carry the
// metadata the incremental differ and the copy engine need; directory
// entries exist so the destination reproduces the tree shape, empty
// directories included.
type Entry struct {
	// RelPath is the path relative to the source root, "" for the root.
	RelPath string
	// AbsPath is the absolute source path.
	AbsPath string
	// Size is the file size in bytes (0 for directories).
	Size int64
	// ModTime is the file modification time.
	ModTime time.Time
	// Mode is the file's permission bits.
	Mode fs.FileMode
	// IsDir reports whether the entry is a directory.
	IsDir bool
}

// Visitor receives traversal events. File is called for every non-excluded
// entry; returning an error from it aborts the walk. Skip and Error are
// informational and may be nil.
type Visitor struct {
	// File is called for each surviving entry, directories included.
	File func(Entry) error
	// Skip is called once per excluded name. An excluded directory is
	// reported once; its subtree is never visited.
	Skip func(path string, isDir bool)
	// Error is called for per-subtree failures (unreadable directory,
	// detected cycle). Like Skip, it receives the path relative to the
	// root; the wrapped error carries the absolute location. The walk
	// continues with siblings.
	Error func(path string, err error)
}

// Walk traverses root depth-first, pruning excluded names, and feeds the
// visitor. An error reading the root itself aborts the walk; failures deeper
// in the tree are reported through Visitor.Error and do not stop siblings.
func Walk(root string, set *rules.Set, v Visitor) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", root)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return errors.Wrapf(err, "stat %s", absRoot)
	}
	if !info.IsDir() {
		return errors.Newf("source %s is not a directory", absRoot)
	}

	w := &walk{set: set, v: v, seen: make(map[dirIdentity]struct{})}
	return w.dir(absRoot, "")
}

type walk struct {
	set  *rules.Set
	v    Visitor
	seen map[dirIdentity]struct{}
}

func (w *walk) reportError(path string, err error) {
	if w.v.Error != nil {
		w.v.Error(path, err)
	}
}

func (w *walk) reportSkip(path string, isDir bool) {
	if w.v.Skip != nil {
		w.v.Skip(path, isDir)
	}
}

// dir visits one directory. rel is "" for the root.
func (w *walk) dir(abs, rel string) error {
	id, err := identify(abs)
	if err != nil {
		if rel == "" {
			return errors.Wrapf(err, "identifying root %s", abs)
		}
		w.reportError(rel, err)
		return nil
	}
	if _, dup := w.seen[id]; dup {
		// Identity keys catch aliases that path-string sets would miss.
		if rel == "" {
			return errors.Wrapf(errors.ErrCycle, "at %s", abs)
		}
		w.reportError(rel, errors.Wrapf(errors.ErrCycle, "at %s", abs))
		return nil
	}
	w.seen[id] = struct{}{}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		if rel == "" {
			return errors.Wrapf(err, "reading root %s", abs)
		}
		w.reportError(rel, errors.Wrapf(err, "reading %s", abs))
		return nil
	}

	// os.ReadDir sorts by name, so traversal within a run is deterministic.
	for _, de := range dirents {
		name := de.Name()
		childAbs := filepath.Join(abs, name)
		childRel := filepath.Join(rel, name)
		isDir := de.IsDir() // lstat-based: a symlinked directory counts as a file

		if w.set.ShouldSkip(name, isDir) {
			w.reportSkip(childRel, isDir)
			continue
		}

		if isDir {
			info, err := de.Info()
			if err != nil {
				w.reportError(childRel, errors.Wrapf(err, "stat %s", childAbs))
				continue
			}
			if err := w.v.File(Entry{
				RelPath: childRel,
				AbsPath: childAbs,
				ModTime: info.ModTime(),
				Mode:    info.Mode().Perm(),
				IsDir:   true,
			}); err != nil {
				return err
			}
			if err := w.dir(childAbs, childRel); err != nil {
				return err
			}
			continue
		}

		entry, ok, err := fileEntry(de, childAbs, childRel)
		if err != nil {
			w.reportError(childRel, err)
			continue
		}
		if !ok {
			// Symlink to a directory: never descended, never copied.
			w.reportSkip(childRel, true)
			continue
		}
		if err := w.v.File(entry); err != nil {
			return err
		}
	}

	return nil
}

// fileEntry builds the Entry for a non-directory. Symlinks are presented as
// regular files carrying their target's size so the copied content diffs
// correctly; a dangling link falls back to the link's own metadata and will
// surface as a copy failure later. A symlink pointing at a directory is
// reported as not-ok rather than descended, which is what keeps symlink
// cycles impossible by construction.
func fileEntry(de fs.DirEntry, abs, rel string) (Entry, bool, error) {
	info, err := de.Info()
	if err != nil {
		return Entry{}, false, errors.Wrap(err, "stat file")
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if target, terr := os.Stat(abs); terr == nil {
			if target.IsDir() {
				return Entry{}, false, nil
			}
			info = target
		}
	}

	return Entry{
		RelPath: rel,
		AbsPath: abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode().Perm(),
	}, true, nil
}
