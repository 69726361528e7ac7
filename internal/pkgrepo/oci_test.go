package pkgrepo

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestArchive(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	content := []byte("#!/bin/sh\necho hi\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "usr/bin/hi", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(content)),
	}))
	_, err = tw.Write(content)
	require.NoError(t, err)
}

func TestUnpackStagePackagesExtractsArchives(t *testing.T) {
	stageDir := t.TempDir()
	installDir := t.TempDir()
	writeTestArchive(t, filepath.Join(stageDir, "curl.tar"))

	repo := &OCIRepository{}
	require.NoError(t, repo.UnpackStagePackages(stageDir, installDir))

	data, err := os.ReadFile(filepath.Join(installDir, "usr", "bin", "hi"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo hi")
}

func TestGetPackagesForSourceType(t *testing.T) {
	repo := &OCIRepository{}
	assert.Equal(t, []string{"git"}, repo.GetPackagesForSourceType("git"))
	assert.Nil(t, repo.GetPackagesForSourceType("tar"))
}

func TestRefForUsesPrefixAndBase(t *testing.T) {
	repo := &OCIRepository{RefPrefix: "registry.example.com/packages"}
	assert.Equal(t, "registry.example.com/packages/curl:ubuntu-24.04", repo.refFor("curl", "ubuntu@24.04"))

	bare := &OCIRepository{}
	assert.Equal(t, "curl:latest", bare.refFor("curl", ""))
}
