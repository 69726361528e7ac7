package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultUsesHostArch(t *testing.T) {
	opts := Default("/tmp/work")
	assert.Equal(t, HostArch(), opts.TargetArch)
	assert.NoError(t, opts.Validate())
}

func TestValidateRejectsUnknownArch(t *testing.T) {
	opts := Options{TargetArch: "made-up-arch"}
	assert.Error(t, opts.Validate())
}

func TestLoadAppliesOverride(t *testing.T) {
	v := viper.New()
	v.Set("target-arch", "riscv64")

	opts, err := Load(v, "/tmp/work")
	require.NoError(t, err)
	assert.Equal(t, "riscv64", opts.TargetArch)
	assert.Equal(t, "/tmp/work", opts.WorkDir)
}
