package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMigrateCopiesFilesAndRecordsThem(t *testing.T) {
	src := t.TempDir()
	shared := t.TempDir()
	write(t, filepath.Join(src, "etc", "foo"), "data")

	result, err := Migrate("p1", src, shared, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, result.Files, filepath.Join("etc", "foo"))
	data, err := os.ReadFile(filepath.Join(shared, "etc", "foo"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestMigrateFailsOnCollisionWithDifferentOwner(t *testing.T) {
	src := t.TempDir()
	shared := t.TempDir()
	write(t, filepath.Join(src, "etc", "foo"), "data")

	_, err := Migrate("p2", src, shared, nil, map[string]string{filepath.Join("etc", "foo"): "p1"})
	require.Error(t, err)
}

func TestCleanSharedAreaPreservesCoOwnedPath(t *testing.T) {
	shared := t.TempDir()
	write(t, filepath.Join(shared, "etc", "foo"), "data")

	warnings := CleanSharedArea(shared, []string{filepath.Join("etc", "foo")}, nil,
		map[string]bool{filepath.Join("etc", "foo"): true}, nil)
	assert.Empty(t, warnings)
	assert.FileExists(t, filepath.Join(shared, "etc", "foo"))
}

func TestCleanSharedAreaRemovesUnclaimedPath(t *testing.T) {
	shared := t.TempDir()
	write(t, filepath.Join(shared, "etc", "foo"), "data")

	warnings := CleanSharedArea(shared, []string{filepath.Join("etc", "foo")}, nil, nil, nil)
	assert.Empty(t, warnings)
	assert.NoFileExists(t, filepath.Join(shared, "etc", "foo"))
}

func TestOrganizeFilesMovesMatchedFile(t *testing.T) {
	install := t.TempDir()
	write(t, filepath.Join(install, "bin", "app"), "binary")

	entries := []parts.OrganizeEntry{{Source: "bin/app", Destination: "usr/bin/app"}}
	produced, err := OrganizeFiles(install, entries, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("usr", "bin", "app")}, produced)
	assert.FileExists(t, filepath.Join(install, "usr", "bin", "app"))
}

func TestOrganizeFilesRejectsOverwriteWithoutFlag(t *testing.T) {
	install := t.TempDir()
	write(t, filepath.Join(install, "bin", "app"), "binary")
	write(t, filepath.Join(install, "usr", "bin", "app"), "existing")

	entries := []parts.OrganizeEntry{{Source: "bin/app", Destination: "usr/bin/app"}}
	_, err := OrganizeFiles(install, entries, false, nil)
	assert.Error(t, err)
}

func TestOrganizeFilesUpdateOnlyOverwritesPriorOutput(t *testing.T) {
	install := t.TempDir()
	write(t, filepath.Join(install, "bin", "app"), "v2")
	write(t, filepath.Join(install, "usr", "bin", "app"), "v1")

	entries := []parts.OrganizeEntry{{Source: "bin/app", Destination: "usr/bin/app"}}
	_, err := OrganizeFiles(install, entries, true, map[string]bool{filepath.Join("usr", "bin", "app"): true})
	require.NoError(t, err)

	write(t, filepath.Join(install, "bin", "other"), "sneaky")
	write(t, filepath.Join(install, "etc", "config"), "protected")
	entries2 := []parts.OrganizeEntry{{Source: "bin/other", Destination: "etc/config"}}
	_, err = OrganizeFiles(install, entries2, true, map[string]bool{filepath.Join("usr", "bin", "app"): true})
	assert.Error(t, err, "update must not overwrite a path outside its own prior organize output")
}
