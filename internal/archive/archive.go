// Package archive folds a finished backup tree into a single tar.gz file.
//
// The pipeline is streaming end to end: tar entries are written through a
// parallel gzip writer, so archiving never buffers a whole file. Compression
// runs strictly after all copy and verification work completes.
package archive

import (
	"archive/tar"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"

	"github.com/jtarrant/dirsnap/internal/errors"
)

// Create writes the tree rooted at treeRoot into a gzip-compressed tar
// archive at outPath. Entry names are relative to treeRoot, preserving the
// directory structure exactly as copied. On failure the partial archive is
// removed and the uncompressed tree is left untouched.
func Create(treeRoot, outPath string) (err error) {
	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(errors.ErrArchive, "creating %s: %v", outPath, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(outPath)
		}
	}()

	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(treeRoot, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}

		rel, rerr := filepath.Rel(treeRoot, path)
		if rerr != nil {
			return rerr
		}
		if rel == "." {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}

		hdr, herr := tar.FileInfoHeader(info, "")
		if herr != nil {
			return herr
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if werr := tw.WriteHeader(hdr); werr != nil {
			return werr
		}
		if d.IsDir() {
			return nil
		}

		f, oerr := os.Open(path)
		if oerr != nil {
			return oerr
		}
		defer f.Close()

		_, cerr := io.Copy(tw, f)
		return cerr
	})
	if err != nil {
		return errors.Wrapf(errors.ErrArchive, "archiving %s: %v", treeRoot, err)
	}

	// Close order matters: tar trailer, then gzip trailer, then the file.
	if cerr := tw.Close(); cerr != nil {
		err = errors.Wrapf(errors.ErrArchive, "finalizing tar: %v", cerr)
		return err
	}
	if cerr := gz.Close(); cerr != nil {
		err = errors.Wrapf(errors.ErrArchive, "finalizing gzip: %v", cerr)
		return err
	}
	if cerr := out.Close(); cerr != nil {
		err = errors.Wrapf(errors.ErrArchive, "closing %s: %v", outPath, cerr)
		return err
	}

	return nil
}
