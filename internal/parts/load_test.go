package parts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
parts:
  lib:
    plugin: make
    source: https://example.com/lib.tar.gz
    build-packages: [gcc]
  app:
    plugin: dump
    source: .
    after: [lib]
    overlay-packages: [libssl3]
    organize:
      - source: bin/app
        destination: usr/bin/app
`

func TestLoadBytesPreservesDeclarationOrder(t *testing.T) {
	set, err := LoadBytes([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "app"}, set.Names())

	app, ok := set.Get("app")
	require.True(t, ok)
	assert.True(t, app.HasOverlay())
	assert.Equal(t, "usr/bin/app", app.Spec.Organize[0].Destination)

	lib, ok := set.Get("lib")
	require.True(t, ok)
	assert.False(t, lib.HasOverlay())
	assert.Equal(t, []string{"gcc"}, lib.Spec.BuildPackages)
}

func TestLoadBytesRejectsUnknownAfter(t *testing.T) {
	_, err := LoadBytes([]byte(`
parts:
  app:
    plugin: dump
    after: [missing]
`))
	require.Error(t, err)
}
