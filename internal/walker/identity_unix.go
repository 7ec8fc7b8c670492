//go:build unix

package walker

import (
	"os"
	"syscall"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// dirIdentity uniquely identifies a directory regardless of the path string
// used to reach it.
type dirIdentity struct {
	dev uint64
	ino uint64
}

// identify returns the device+inode identity of the directory at path.
func identify(path string) (dirIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return dirIdentity{}, errors.Wrap(err, "stat for identity")
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return dirIdentity{}, errors.Newf("unexpected stat type for %s", path)
	}

	return dirIdentity{dev: uint64(st.Dev), ino: uint64(st.Ino)}, nil
}
