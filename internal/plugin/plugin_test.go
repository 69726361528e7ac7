package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNilPlugin(t *testing.T) {
	p, err := Build("nil", Info{PartName: "app"}, nil)
	require.NoError(t, err)
	assert.Empty(t, p.BuildCommands())
	assert.False(t, p.OutOfSourceBuild())
}

func TestBuildDumpPlugin(t *testing.T) {
	p, err := Build("dump", Info{PartName: "app", InstallDir: "/work/parts/app/install"}, nil)
	require.NoError(t, err)
	assert.Contains(t, p.BuildCommands()[0], "/work/parts/app/install")
}

func TestBuildUnknownPluginErrors(t *testing.T) {
	_, err := Build("does-not-exist", Info{}, nil)
	assert.Error(t, err)
}
