//go:build !unix

package walker

import (
	"path/filepath"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// dirIdentity identifies a directory by its canonical path on platforms
// without stable device+inode semantics.
type dirIdentity struct {
	canonical string
}

// identify returns the canonical-path identity of the directory at path.
func identify(path string) (dirIdentity, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return dirIdentity{}, errors.Wrap(err, "resolving path for identity")
	}
	return dirIdentity{canonical: resolved}, nil
}
