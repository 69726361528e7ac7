package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestProject(t *testing.T) (workDir string) {
	t.Helper()
	workDir = t.TempDir()
	srcDir := filepath.Join(workDir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hi"), 0o644))

	partsYAML := "parts:\n  app:\n    plugin: dump\n    source: " + srcDir + "\n    source-type: local\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "parts.yaml"), []byte(partsYAML), 0o644))
	return workDir
}

func newTestViper(workDir string) *viper.Viper {
	v := viper.New()
	v.Set("work-dir", workDir)
	v.Set("target-arch", "amd64")
	v.Set("base", "ubuntu@24.04")
	v.Set("log-level", "error")
	return v
}

func TestPlanCommandPrintsActionsWithoutRunning(t *testing.T) {
	workDir := writeTestProject(t)
	v := newTestViper(workDir)

	cmd := NewPlanCommand(v)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "app:PULL(RUN)")
	assert.NoFileExists(t, filepath.Join(workDir, "prime", "hello.txt"))
}

func TestExecuteCommandRunsToPrime(t *testing.T) {
	workDir := writeTestProject(t)
	v := newTestViper(workDir)

	cmd := NewExecuteCommand(v)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "app:PRIME(RUN)")
}

func TestCleanCommandRemovesState(t *testing.T) {
	workDir := writeTestProject(t)
	v := newTestViper(workDir)

	execCmd := NewExecuteCommand(v)
	execCmd.SetOut(&bytes.Buffer{})
	execCmd.SetArgs([]string{})
	require.NoError(t, execCmd.Execute())

	cleanCmd := NewCleanCommand(v)
	cleanCmd.SetArgs([]string{"--step", "build"})
	require.NoError(t, cleanCmd.Execute())
	assert.NoFileExists(t, filepath.Join(workDir, "parts", "app", "state", "build"))
}
