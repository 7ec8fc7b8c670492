package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// readArchive returns a map of entry name to content for regular files;
// directories map to an empty string with a trailing-slash key.
func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		if hdr.Typeflag == tar.TypeDir {
			entries[hdr.Name] = ""
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(data)
	}
	return entries
}

func TestCreate_RoundTrip(t *testing.T) {
	tree := t.TempDir()
	buildTree(t, tree, map[string]string{
		"a.txt":        "alpha",
		"sub/b.txt":    "beta",
		"sub/deep/c":   "gamma",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(tree, "empty"), 0o755))

	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	require.NoError(t, Create(tree, out))

	entries := readArchive(t, out)

	require.Equal(t, "alpha", entries["a.txt"])
	require.Equal(t, "beta", entries["sub/b.txt"])
	require.Equal(t, "gamma", entries["sub/deep/c"])

	// Directory structure is preserved, empty directories included.
	require.Contains(t, entries, "sub/")
	require.Contains(t, entries, "sub/deep/")
	require.Contains(t, entries, "empty/")

	// No absolute paths leak into entry names.
	for name := range entries {
		require.False(t, filepath.IsAbs(name), "entry %q is absolute", name)
	}
}

func TestCreate_MissingTree(t *testing.T) {
	out := filepath.Join(t.TempDir(), "backup.tar.gz")
	err := Create(filepath.Join(t.TempDir(), "gone"), out)
	require.Error(t, err)

	// The partial archive must not be left behind.
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}
