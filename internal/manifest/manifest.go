// Package manifest records the baseline for incremental backups.
//
// A manifest is a sidecar file mapping relative path to size and modification
// time, written after a successful run and read as the comparison baseline by
// the next incremental run against the same logical source. It lives under
// <target>/.dirsnap/, outside the destination tree, so archiving or deleting
// a backup cannot destroy the next run's baseline.
package manifest

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jtarrant/dirsnap/internal/errors"
	"github.com/jtarrant/dirsnap/pkg/fileutil"
)

// Version is the manifest format version for forward compatibility.
const Version = 1

// sidecarDir is the directory under the target that holds manifests.
const sidecarDir = ".dirsnap"

// EntryInfo is the recorded state of one source file.
type EntryInfo struct {
	// Size is the file size in bytes at backup time.
	Size int64 `json:"size"`

	// ModTime is the file modification time at backup time.
	ModTime time.Time `json:"mtime"`

	// SHA256 is the hex digest of the file content, recorded only when the
	// run verified the copy. Informational; the incremental diff does not
	// consult it.
	SHA256 string `json:"sha256,omitempty"`
}

// Manifest is the baseline snapshot for one logical source.
type Manifest struct {
	// Version is the manifest format version.
	Version int `json:"version"`

	// CreatedAt is when the recording run finished.
	CreatedAt time.Time `json:"created_at"`

	// Source is the absolute source root the snapshot describes.
	Source string `json:"source"`

	// Entries maps slash-separated relative paths to their recorded state.
	Entries map[string]EntryInfo `json:"entries"`
}

// Decision is the incremental differ's verdict for one entry.
type Decision int

const (
	// Copy means the entry is new or changed relative to the baseline.
	Copy Decision = iota
	// Skip means the baseline already holds an equal size and mtime.
	Skip
)

// New creates an empty manifest for the given source root.
func New(source string) *Manifest {
	return &Manifest{
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Entries:   make(map[string]EntryInfo),
	}
}

// Path returns the sidecar location for a source backed up into targetDir.
func Path(targetDir, sourceRoot string) string {
	return filepath.Join(targetDir, sidecarDir, filepath.Base(sourceRoot)+".json")
}

// Load reads the manifest at path. A missing file returns (nil, nil): the
// first incremental run has no baseline and copies everything.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if err := fileutil.ReadJSON(path, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "loading manifest")
	}
	if m.Entries == nil {
		m.Entries = make(map[string]EntryInfo)
	}
	return &m, nil
}

// Save writes the manifest atomically, creating the sidecar directory as
// needed.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating manifest directory")
	}
	if err := fileutil.AtomicWriteJSON(path, m); err != nil {
		return errors.Wrap(err, "writing manifest")
	}
	return nil
}

// Record stores the current state of relPath. Relative paths are normalized
// to forward slashes so manifests are portable across platforms.
func (m *Manifest) Record(relPath string, size int64, modTime time.Time) {
	m.Entries[filepath.ToSlash(relPath)] = EntryInfo{
		Size:    size,
		ModTime: modTime.Truncate(time.Second),
	}
}

// SetDigest attaches a verified content digest to an already recorded entry.
func (m *Manifest) SetDigest(relPath, digest string) {
	key := filepath.ToSlash(relPath)
	if info, ok := m.Entries[key]; ok {
		info.SHA256 = digest
		m.Entries[key] = info
	}
}

// Decide compares an entry against the baseline. The diff is a size+mtime
// heuristic: two files with identical size and mtime but different content
// are treated as unchanged. That false-negative window is an accepted
// performance tradeoff; content-hash diffing is a separate mode, not a
// silent replacement. mtimes compare at second granularity to survive
// filesystems that truncate sub-second precision.
func (m *Manifest) Decide(relPath string, size int64, modTime time.Time) Decision {
	if m == nil {
		return Copy
	}
	info, ok := m.Entries[filepath.ToSlash(relPath)]
	if !ok {
		return Copy
	}
	if info.Size != size {
		return Copy
	}
	if !info.ModTime.Equal(modTime.Truncate(time.Second)) {
		return Copy
	}
	return Skip
}
