package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeIntoOpaqueMarkerClearsDestDir(t *testing.T) {
	dest := t.TempDir()
	src := t.TempDir()

	writeFile(t, filepath.Join(dest, "etc", "old-file"), "stale")
	writeFile(t, filepath.Join(src, "etc", opaqueMarker), "")
	writeFile(t, filepath.Join(src, "etc", "new-file"), "fresh")

	require.NoError(t, mergeInto(dest, src))

	assert.NoFileExists(t, filepath.Join(dest, "etc", "old-file"))
	assert.FileExists(t, filepath.Join(dest, "etc", "new-file"))
	assert.NoFileExists(t, filepath.Join(dest, "etc", opaqueMarker))
}

func TestMergeIntoPreservesSymlinks(t *testing.T) {
	dest := t.TempDir()
	src := t.TempDir()

	writeFile(t, filepath.Join(src, "target.txt"), "content")
	require.NoError(t, os.Symlink("target.txt", filepath.Join(src, "link.txt")))

	require.NoError(t, mergeInto(dest, src))

	got, err := os.Readlink(filepath.Join(dest, "link.txt"))
	require.NoError(t, err)
	assert.Equal(t, "target.txt", got)
}
