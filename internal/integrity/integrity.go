// Package integrity verifies copied content against SHA-256 digests.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// chunkSize bounds memory use while hashing; files are never buffered whole.
const chunkSize = 128 * 1024

// Record is the outcome of verifying one copied entry.
type Record struct {
	// RelPath is the entry's path relative to the source root.
	RelPath string

	// SourceDigest is the hex SHA-256 of the source file.
	SourceDigest string

	// DestDigest is the hex SHA-256 of the copied file.
	DestDigest string

	// Match reports whether the two digests are equal.
	Match bool
}

// HashFile computes the hex-encoded SHA-256 digest of the file at path,
// streaming it in fixed-size chunks.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyPair hashes the source and destination files and compares the
// digests. A mismatch is reported in the Record, not as an error; errors are
// reserved for being unable to read either file.
func VerifyPair(relPath, srcPath, dstPath string) (Record, error) {
	srcDigest, err := HashFile(srcPath)
	if err != nil {
		return Record{}, errors.Wrapf(err, "hashing source %s", relPath)
	}

	dstDigest, err := HashFile(dstPath)
	if err != nil {
		return Record{}, errors.Wrapf(err, "hashing copy %s", relPath)
	}

	return Record{
		RelPath:      relPath,
		SourceDigest: srcDigest,
		DestDigest:   dstDigest,
		Match:        srcDigest == dstDigest,
	}, nil
}
