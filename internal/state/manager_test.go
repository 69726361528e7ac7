package state

import (
	"testing"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/steps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	root := t.TempDir()
	return NewManager(func(part string) parts.Dirs { return parts.PartDirs(root, part) })
}

func TestHasStepRunFalseBeforeSave(t *testing.T) {
	m := testManager(t)
	assert.False(t, m.HasStepRun("app", steps.Pull))
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	m := testManager(t)
	rec := New(steps.Pull, map[string]interface{}{"source": "https://example.com/a.tar"}, nil)
	require.NoError(t, m.Save("app", steps.Pull, rec))

	assert.True(t, m.HasStepRun("app", steps.Pull))

	loaded, ok, err := m.Load("app", steps.Pull)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a.tar", loaded.PartProperties["source"])
}

func TestCheckIfDirtyDetectsChangedProperty(t *testing.T) {
	m := testManager(t)
	p := &parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil", Source: "v1"}}
	rec := New(steps.Pull, p.Properties(), nil)
	require.NoError(t, m.Save(p.Name, steps.Pull, rec))

	p.Spec.Source = "v2"
	report, err := m.CheckIfDirty(p, steps.Pull, DirtyOptions{})
	require.NoError(t, err)
	assert.True(t, report.Dirty)
	assert.Equal(t, "'source' property changed", report.Reason)
}

func TestCheckIfDirtyIgnoresPropertiesNotOfInterest(t *testing.T) {
	m := testManager(t)
	p := &parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil", Source: "v1", OverrideBuild: "make"}}
	rec := New(steps.Pull, p.Properties(), nil)
	require.NoError(t, m.Save(p.Name, steps.Pull, rec))

	p.Spec.OverrideBuild = "make install"
	report, err := m.CheckIfDirty(p, steps.Pull, DirtyOptions{})
	require.NoError(t, err)
	assert.False(t, report.Dirty)
}

func TestShouldStepRunTrueWhenNeverRun(t *testing.T) {
	m := testManager(t)
	p := &parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil"}}
	should, err := m.ShouldStepRun(p, steps.Pull, DirtyOptions{}, OutdatedOptions{})
	require.NoError(t, err)
	assert.True(t, should)
}

func TestCleanFromStepRemovesAllHigherState(t *testing.T) {
	m := testManager(t)
	p := &parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil"}}
	for _, s := range steps.All {
		require.NoError(t, m.Save(p.Name, s, New(s, p.Properties(), nil)))
	}

	require.NoError(t, m.CleanFromStep(p.Name, steps.Build))

	assert.True(t, m.HasStepRun(p.Name, steps.Pull))
	assert.True(t, m.HasStepRun(p.Name, steps.Overlay))
	assert.False(t, m.HasStepRun(p.Name, steps.Build))
	assert.False(t, m.HasStepRun(p.Name, steps.Stage))
	assert.False(t, m.HasStepRun(p.Name, steps.Prime))
}
