package layerhash

import (
	"path/filepath"
	"testing"

	"github.com/partcraft/partcraft/internal/parts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPartIsDeterministic(t *testing.T) {
	p := &parts.Part{Name: "base", Spec: parts.Spec{
		Plugin:          "nil",
		OverlayPackages: []string{"libssl3", "ca-certificates"},
		OverlayFiles:    []string{"etc/ssl/*"},
		OverlayScript:   "update-ca-certificates",
	}}

	h1 := ForPart(p, Hash{})
	h2 := ForPart(p, Hash{})
	assert.True(t, h1.Equal(h2))
	assert.NotEmpty(t, h1.Hex())
}

func TestForPartIsOrderInsensitiveToPackageDeclarationOrder(t *testing.T) {
	a := &parts.Part{Name: "a", Spec: parts.Spec{
		Plugin:          "nil",
		OverlayPackages: []string{"b-pkg", "a-pkg"},
	}}
	b := &parts.Part{Name: "b", Spec: parts.Spec{
		Plugin:          "nil",
		OverlayPackages: []string{"a-pkg", "b-pkg"},
	}}

	assert.True(t, ForPart(a, Hash{}).Equal(ForPart(b, Hash{})))
}

func TestForPartChainsPreviousHash(t *testing.T) {
	p := &parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil", OverlayScript: "true"}}

	withoutPrev := ForPart(p, Hash{})
	withPrev := ForPart(p, ForPart(&parts.Part{Name: "base", Spec: parts.Spec{
		Plugin: "nil", OverlayPackages: []string{"libfoo"},
	}}, Hash{}))

	assert.False(t, withoutPrev.Equal(withPrev))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	dirs := parts.PartDirs(root, "app")

	_, ok, err := Load(dirs)
	require.NoError(t, err)
	assert.False(t, ok)

	h := ForPart(&parts.Part{Name: "app", Spec: parts.Spec{Plugin: "nil"}}, Hash{})
	require.NoError(t, Save(dirs, h))

	loaded, ok, err := Load(dirs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, h.Equal(loaded))

	assert.FileExists(t, filepath.Join(dirs.State, "layer_hash"))
}
