package handler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/overlay"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository is a no-op pkgrepo.Repository, sufficient for parts
// that declare no stage/build/overlay packages.
type fakeRepository struct{}

func (fakeRepository) FetchStagePackages(_ context.Context, _ string, _ []string, _, _, _ string) ([]string, error) {
	return nil, nil
}
func (fakeRepository) UnpackStagePackages(_, _ string) error    { return nil }
func (fakeRepository) GetPackagesForSourceType(_ string) []string { return nil }
func (fakeRepository) GetInstalledPackages() ([]string, error)  { return nil, nil }

func newTestHandler(t *testing.T, set *parts.Set, stackOrder []string) *Handler {
	t.Helper()
	workDir := t.TempDir()
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}
	require.NoError(t, opts.EnsureDirs())

	mgr := state.NewManager(func(part string) parts.Dirs { return parts.PartDirs(workDir, part) })
	ov := overlay.NewManager(filepath.Join(workDir, "overlay", "scratch"))
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "overlay"), 0o755))

	return New(opts, set, stackOrder, mgr, ov, fakeRepository{}, nil)
}

func buildSet(t *testing.T, specs map[string]parts.Spec) *parts.Set {
	t.Helper()
	list := make([]*parts.Part, 0, len(specs))
	for name, spec := range specs {
		list = append(list, &parts.Part{Name: name, Spec: spec})
	}
	set, err := parts.NewSet(list)
	require.NoError(t, err)
	return set
}

func TestRunActionFullLifecycleSingleDumpPart(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hi"), 0o644))

	set := buildSet(t, map[string]parts.Spec{
		"app": {Plugin: "dump", Source: srcDir, SourceType: "local"},
	})
	h := newTestHandler(t, set, []string{"app"})
	ctx := context.Background()

	for _, step := range steps.All {
		require.NoError(t, h.RunAction(ctx, actions.New("app", step)))
	}

	assert.FileExists(t, filepath.Join(h.ProjectDirs.Stage, "hello.txt"))
	assert.FileExists(t, filepath.Join(h.ProjectDirs.Prime, "hello.txt"))
	assert.True(t, h.State.HasStepRun("app", steps.Prime))
}

func TestRunActionSkipDoesNothing(t *testing.T) {
	set := buildSet(t, map[string]parts.Spec{"app": {Plugin: "nil"}})
	h := newTestHandler(t, set, []string{"app"})

	err := h.RunAction(context.Background(), actions.New("app", steps.Pull, actions.WithType(actions.Skip)))
	assert.NoError(t, err)
	assert.False(t, h.State.HasStepRun("app", steps.Pull))
}

func TestRunActionRerunCleansStateFirst(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("v1"), 0o644))

	set := buildSet(t, map[string]parts.Spec{
		"app": {Plugin: "dump", Source: srcDir, SourceType: "local"},
	})
	h := newTestHandler(t, set, []string{"app"})
	ctx := context.Background()

	for _, step := range []steps.Step{steps.Pull, steps.Overlay, steps.Build} {
		require.NoError(t, h.RunAction(ctx, actions.New("app", step)))
	}
	require.NoError(t, h.RunAction(ctx, actions.New("app", steps.Build, actions.WithType(actions.Rerun))))
	assert.True(t, h.State.HasStepRun("app", steps.Build))
}

func TestRunActionTwoPartsStageWithoutCollision(t *testing.T) {
	srcA := t.TempDir()
	srcB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "b.txt"), []byte("b"), 0o644))

	set := buildSet(t, map[string]parts.Spec{
		"a": {Plugin: "dump", Source: srcA, SourceType: "local"},
		"b": {Plugin: "dump", Source: srcB, SourceType: "local"},
	})
	h := newTestHandler(t, set, []string{"a", "b"})
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		for _, step := range steps.All {
			require.NoError(t, h.RunAction(ctx, actions.New(name, step)))
		}
	}

	assert.FileExists(t, filepath.Join(h.ProjectDirs.Prime, "a.txt"))
	assert.FileExists(t, filepath.Join(h.ProjectDirs.Prime, "b.txt"))
}

func TestCleanStepRemovesBuildArtifacts(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("a"), 0o644))

	set := buildSet(t, map[string]parts.Spec{
		"app": {Plugin: "dump", Source: srcDir, SourceType: "local"},
	})
	h := newTestHandler(t, set, []string{"app"})
	ctx := context.Background()

	for _, step := range []steps.Step{steps.Pull, steps.Overlay, steps.Build} {
		require.NoError(t, h.RunAction(ctx, actions.New("app", step)))
	}

	require.NoError(t, h.CleanStep("app", steps.Build))
	assert.NoDirExists(t, h.dirs("app").Install)
	assert.False(t, h.State.HasStepRun("app", steps.Build))
}
