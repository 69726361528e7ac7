package parts

import (
	"testing"

	"github.com/partcraft/partcraft/internal/partserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPart(name string, after ...string) *Part {
	return &Part{Name: name, Spec: Spec{Plugin: "nil", After: after}}
}

func TestSortedNamesOrdersByAfter(t *testing.T) {
	set, err := NewSet([]*Part{
		mustPart("app", "lib"),
		mustPart("lib"),
		mustPart("tools"),
	})
	require.NoError(t, err)

	order, err := set.SortedNames()
	require.NoError(t, err)

	libIdx := indexOf(order, "lib")
	appIdx := indexOf(order, "app")
	assert.Less(t, libIdx, appIdx, "lib must be sorted before the part that comes after it")
}

func TestSortedNamesDetectsCycle(t *testing.T) {
	set, err := NewSet([]*Part{
		mustPart("a", "b"),
		mustPart("b", "a"),
	})
	require.NoError(t, err)

	_, err = set.SortedNames()
	require.Error(t, err)
	_, ok := err.(*partserrors.PartDependencyCycle)
	assert.True(t, ok, "expected a PartDependencyCycle error, got %T", err)
}

func TestNewSetRejectsDuplicateName(t *testing.T) {
	_, err := NewSet([]*Part{mustPart("a"), mustPart("a")})
	require.Error(t, err)
}

func TestNewSetRejectsUnknownAfter(t *testing.T) {
	_, err := NewSet([]*Part{mustPart("a", "ghost")})
	require.Error(t, err)
}

func TestHasOverlayBelowOrAt(t *testing.T) {
	withOverlay := mustPart("base")
	withOverlay.Spec.OverlayPackages = []string{"libfoo"}
	noOverlay := mustPart("app", "base")

	set, err := NewSet([]*Part{withOverlay, noOverlay})
	require.NoError(t, err)

	order, err := set.SortedNames()
	require.NoError(t, err)

	assert.True(t, set.HasOverlayBelowOrAt(order, "app"))
	assert.True(t, set.HasOverlayBelowOrAt(order, "base"))
}

func indexOf(list []string, name string) int {
	for i, v := range list {
		if v == name {
			return i
		}
	}
	return -1
}
