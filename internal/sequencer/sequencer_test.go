package sequencer

import (
	"path/filepath"
	"testing"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/layerhash"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/state"
	"github.com/partcraft/partcraft/internal/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, workDir string) *state.Manager {
	t.Helper()
	return state.NewManager(func(part string) parts.Dirs { return parts.PartDirs(workDir, part) })
}

func buildSet(t *testing.T, list ...*parts.Part) *parts.Set {
	t.Helper()
	set, err := parts.NewSet(list)
	require.NoError(t, err)
	return set
}

func findAction(t *testing.T, acts []actions.Action, part string, step steps.Step) actions.Action {
	t.Helper()
	for _, a := range acts {
		if a.PartName == part && a.Step == step {
			return a
		}
	}
	t.Fatalf("no action found for %s.%s in %v", part, step, acts)
	return actions.Action{}
}

func indexOfAction(acts []actions.Action, part string, step steps.Step) int {
	for i, a := range acts {
		if a.PartName == part && a.Step == step {
			return i
		}
	}
	return -1
}

// TestPlanFreshProjectEmitsPrerequisiteChainInOrder covers scenario S1: a
// fresh three-part stack planned to PRIME for only the last part pulls in
// every earlier part's OVERLAY as a prerequisite, in stack order.
func TestPlanFreshProjectEmitsPrerequisiteChainInOrder(t *testing.T) {
	workDir := t.TempDir()
	mgr := newTestManager(t, workDir)
	set := buildSet(t,
		&parts.Part{Name: "p1", Spec: parts.Spec{Plugin: "nil"}},
		&parts.Part{Name: "p2", Spec: parts.Spec{Plugin: "nil"}},
		&parts.Part{Name: "p3", Spec: parts.Spec{Plugin: "nil"}},
	)
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}

	acts, err := Plan(set, mgr, opts, steps.Prime, []string{"p3"})
	require.NoError(t, err)

	for _, part := range []string{"p1", "p2", "p3"} {
		for _, step := range []steps.Step{steps.Pull, steps.Overlay} {
			a := findAction(t, acts, part, step)
			assert.Equal(t, actions.Run, a.Type, "%s.%s", part, step)
		}
	}
	for _, step := range []steps.Step{steps.Build, steps.Stage, steps.Prime} {
		a := findAction(t, acts, "p3", step)
		assert.Equal(t, actions.Run, a.Type, "p3.%s", step)
	}

	p1Pull := findAction(t, acts, "p1", steps.Pull)
	assert.Equal(t, "required to overlay 'p3'", p1Pull.Reason)
	p1Overlay := findAction(t, acts, "p1", steps.Overlay)
	assert.Equal(t, "required to overlay 'p3'", p1Overlay.Reason)

	// Stack order must be honored: p3's own PULL comes first (no
	// prerequisite), then the p1 prerequisite chain, then p2's, then p3's
	// own OVERLAY, then BUILD/STAGE/PRIME.
	assert.Equal(t, 0, indexOfAction(acts, "p3", steps.Pull))
	assert.Less(t, indexOfAction(acts, "p1", steps.Pull), indexOfAction(acts, "p1", steps.Overlay))
	assert.Less(t, indexOfAction(acts, "p1", steps.Overlay), indexOfAction(acts, "p2", steps.Pull))
	assert.Less(t, indexOfAction(acts, "p2", steps.Overlay), indexOfAction(acts, "p3", steps.Overlay))
	assert.Less(t, indexOfAction(acts, "p3", steps.Overlay), indexOfAction(acts, "p3", steps.Build))
	assert.Less(t, indexOfAction(acts, "p3", steps.Build), indexOfAction(acts, "p3", steps.Stage))
	assert.Less(t, indexOfAction(acts, "p3", steps.Stage), indexOfAction(acts, "p3", steps.Prime))
}

// TestPlanSourceChangeReplansFromPull covers scenario S4: once a single
// part has fully primed, changing its source property must force a PULL
// RERUN and cascade RUN through every later step.
func TestPlanSourceChangeReplansFromPull(t *testing.T) {
	workDir := t.TempDir()
	mgr := newTestManager(t, workDir)
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}

	spec := parts.Spec{Plugin: "nil", Source: filepath.Join(workDir, "src-v1")}
	p1 := &parts.Part{Name: "p1", Spec: spec}
	set := buildSet(t, p1)

	for _, step := range steps.All {
		props := p1.Properties()
		require.NoError(t, mgr.Save("p1", step, state.New(step, props, opts.ToMap())))
	}

	p1.Spec.Source = filepath.Join(workDir, "src-v2")
	set2 := buildSet(t, p1)

	acts, err := Plan(set2, mgr, opts, steps.Prime, nil)
	require.NoError(t, err)

	pull := findAction(t, acts, "p1", steps.Pull)
	assert.Equal(t, actions.Rerun, pull.Type)
	assert.Equal(t, "'source' property changed", pull.Reason)

	for _, step := range []steps.Step{steps.Overlay, steps.Build, steps.Stage, steps.Prime} {
		a := findAction(t, acts, "p1", step)
		assert.Equal(t, actions.Run, a.Type, "p1.%s", step)
	}
}

// TestPlanOverlayScriptChangeCascadesReapplyAndBuildRerun covers scenario
// S2: two fully-primed overlay parts, where changing the earlier part's
// overlay-script forces its own OVERLAY to RERUN, REAPPLYs the later
// part's otherwise-unchanged OVERLAY (its mount now sits on a different
// lower layer), and RERUNs BUILD for both since the overlay hash each
// recorded no longer matches.
func TestPlanOverlayScriptChangeCascadesReapplyAndBuildRerun(t *testing.T) {
	workDir := t.TempDir()
	mgr := newTestManager(t, workDir)
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}

	a := &parts.Part{Name: "a", Spec: parts.Spec{Plugin: "nil", OverlayScript: "echo a"}}
	b := &parts.Part{Name: "b", Spec: parts.Spec{Plugin: "nil", OverlayScript: "echo b"}}
	set := buildSet(t, a, b)

	hashA := layerhash.ForPart(a, layerhash.Hash{})
	hashB := layerhash.ForPart(b, hashA)
	require.NoError(t, mgr.SaveLayerHash("a", hashA))
	require.NoError(t, mgr.SaveLayerHash("b", hashB))

	hashes := map[string]layerhash.Hash{"a": hashA, "b": hashB}
	for _, p := range []*parts.Part{a, b} {
		for _, step := range steps.All {
			rec := state.New(step, p.Properties(), opts.ToMap())
			switch step {
			case steps.Overlay, steps.Build, steps.Stage:
				rec.OverlayHash = hashes[p.Name].Hex()
			}
			require.NoError(t, mgr.Save(p.Name, step, rec))
		}
	}

	a.Spec.OverlayScript = "echo a-v2"
	set2 := buildSet(t, a, b)

	acts, err := Plan(set2, mgr, opts, steps.Prime, nil)
	require.NoError(t, err)

	for _, name := range []string{"a", "b"} {
		pull := findAction(t, acts, name, steps.Pull)
		assert.Equal(t, actions.Skip, pull.Type, "%s.pull", name)
	}

	aOverlay := findAction(t, acts, "a", steps.Overlay)
	assert.Equal(t, actions.Rerun, aOverlay.Type)
	assert.Equal(t, "'overlay-script' property changed", aOverlay.Reason)

	bOverlay := findAction(t, acts, "b", steps.Overlay)
	assert.Equal(t, actions.Reapply, bOverlay.Type)
	assert.Equal(t, "previous layer changed", bOverlay.Reason)

	for _, name := range []string{"a", "b"} {
		build := findAction(t, acts, name, steps.Build)
		assert.Equal(t, actions.Rerun, build.Type, "%s.build", name)
		assert.Equal(t, "overlay changed", build.Reason, "%s.build", name)
	}

	for _, name := range []string{"a", "b"} {
		for _, step := range []steps.Step{steps.Stage, steps.Prime} {
			a := findAction(t, acts, name, step)
			assert.Equal(t, actions.Run, a.Type, "%s.%s", name, step)
		}
	}
}

// TestPlanAfterDependencyPullsInDependencyThroughStage covers scenario S3:
// planning STAGE for a part that declares an `after` dependency pulls the
// dependency's PULL/OVERLAY in as an overlay-stack prerequisite (it sits
// immediately below the target in the stack) and its BUILD/STAGE in as a
// build prerequisite, each tagged with its own distinct reason.
func TestPlanAfterDependencyPullsInDependencyThroughStage(t *testing.T) {
	workDir := t.TempDir()
	mgr := newTestManager(t, workDir)
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}

	dep := &parts.Part{Name: "dep", Spec: parts.Spec{Plugin: "nil"}}
	target := &parts.Part{Name: "target", Spec: parts.Spec{Plugin: "nil", After: []string{"dep"}}}
	set := buildSet(t, dep, target)

	acts, err := Plan(set, mgr, opts, steps.Stage, []string{"target"})
	require.NoError(t, err)

	assert.Equal(t, actions.Run, findAction(t, acts, "target", steps.Pull).Type)

	depPull := findAction(t, acts, "dep", steps.Pull)
	assert.Equal(t, actions.Run, depPull.Type)
	assert.Equal(t, "required to overlay 'target'", depPull.Reason)

	depOverlay := findAction(t, acts, "dep", steps.Overlay)
	assert.Equal(t, actions.Run, depOverlay.Type)
	assert.Equal(t, "required to overlay 'target'", depOverlay.Reason)

	depBuild := findAction(t, acts, "dep", steps.Build)
	assert.Equal(t, actions.Run, depBuild.Type)
	assert.Equal(t, "required to build 'target'", depBuild.Reason)

	depStage := findAction(t, acts, "dep", steps.Stage)
	assert.Equal(t, actions.Run, depStage.Type)
	assert.Equal(t, "required to build 'target'", depStage.Reason)

	assert.Less(t, indexOfAction(acts, "dep", steps.Pull), indexOfAction(acts, "dep", steps.Overlay))
	assert.Less(t, indexOfAction(acts, "dep", steps.Overlay), indexOfAction(acts, "target", steps.Overlay))
	assert.Less(t, indexOfAction(acts, "dep", steps.Build), indexOfAction(acts, "dep", steps.Stage))
	assert.Less(t, indexOfAction(acts, "dep", steps.Stage), indexOfAction(acts, "target", steps.Build))
}

func TestPlanAlreadyCompleteStepsAreSkipped(t *testing.T) {
	workDir := t.TempDir()
	mgr := newTestManager(t, workDir)
	opts := config.Options{WorkDir: workDir, TargetArch: "amd64", Base: "ubuntu@24.04"}

	p1 := &parts.Part{Name: "p1", Spec: parts.Spec{Plugin: "nil"}}
	set := buildSet(t, p1)

	for _, step := range steps.All {
		require.NoError(t, mgr.Save("p1", step, state.New(step, p1.Properties(), opts.ToMap())))
	}

	acts, err := Plan(set, mgr, opts, steps.Prime, nil)
	require.NoError(t, err)
	for _, step := range steps.All {
		a := findAction(t, acts, "p1", step)
		assert.Equal(t, actions.Skip, a.Type, "p1.%s", step)
		assert.Equal(t, "already ran", a.Reason)
	}
}
