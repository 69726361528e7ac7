// Package config loads the project-wide options that parameterize a
// plan/execute run: target architecture, work-tree root, parts
// definition path, and the base layer hash the overlay chain starts from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/partcraft/partcraft/internal/partserrors"
	"github.com/spf13/viper"
)

// Options holds the project-wide configuration consumed by the sequencer
// and part handler as "project_options" (spec.md §3: StepState carries a
// project_options snapshot for dirty comparison).
type Options struct {
	// WorkDir is the project work-tree root; all per-part and shared
	// directories are derived from it.
	WorkDir string `mapstructure:"work-dir"`

	// PartsFile is the path to the parts YAML definition.
	PartsFile string `mapstructure:"parts-file"`

	// TargetArch is the architecture packages/snaps are fetched for.
	TargetArch string `mapstructure:"target-arch"`

	// Base is the distribution base used to resolve stage/overlay
	// packages (e.g. "ubuntu@24.04").
	Base string `mapstructure:"base"`

	// BaseLayerHash seeds the overlay layer-hash chain; empty means the
	// chain starts from the zero hash.
	BaseLayerHash string `mapstructure:"base-layer-hash"`
}

// supportedArches mirrors the architectures the package repository and
// overlay mount mechanism are grounded to support.
var supportedArches = map[string]bool{
	"amd64": true, "arm64": true, "armhf": true, "riscv64": true, "s390x": true, "ppc64el": true,
}

// ToMap snapshots Options as the plain map StepState.ProjectOptions wants.
func (o Options) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"target-arch":     o.TargetArch,
		"base":            o.Base,
		"base-layer-hash": o.BaseLayerHash,
	}
}

// Validate checks the architecture is one the package repository knows
// how to resolve.
func (o Options) Validate() error {
	if !supportedArches[o.TargetArch] {
		return partserrors.NewInvalidArchitecture(o.TargetArch)
	}
	return nil
}

// Default returns Options with a host-derived target architecture and
// conventional on-disk paths under workDir.
func Default(workDir string) Options {
	return Options{
		WorkDir:    workDir,
		PartsFile:  filepath.Join(workDir, "parts.yaml"),
		TargetArch: HostArch(),
		Base:       "",
	}
}

// Load builds Options from a viper instance, applying env var and config
// file overrides on top of Default(workDir)'s values (the same
// precedence order the CLI's viper binding uses: flag > env > file >
// default).
func Load(v *viper.Viper, workDir string) (Options, error) {
	def := Default(workDir)
	v.SetDefault("work-dir", def.WorkDir)
	v.SetDefault("parts-file", def.PartsFile)
	v.SetDefault("target-arch", def.TargetArch)
	v.SetDefault("base", def.Base)
	v.SetDefault("base-layer-hash", def.BaseLayerHash)

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("load config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// EnsureDirs creates the project-wide directories execute() will write
// into, if they don't already exist.
func (o Options) EnsureDirs() error {
	for _, dir := range []string{o.WorkDir, filepath.Join(o.WorkDir, "parts"), filepath.Join(o.WorkDir, "overlay")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", dir, err)
		}
	}
	return nil
}

// HostArch normalizes runtime.GOARCH to the debian-style architecture
// names the package repository and parts schema use.
func HostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64"
	case "arm":
		return "armhf"
	case "riscv64":
		return "riscv64"
	case "ppc64le":
		return "ppc64el"
	default:
		return runtime.GOARCH
	}
}
