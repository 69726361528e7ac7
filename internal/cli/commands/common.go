package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partcraft/partcraft/internal/actions"
	"github.com/partcraft/partcraft/internal/config"
	"github.com/partcraft/partcraft/internal/lifecycle"
	"github.com/partcraft/partcraft/internal/logging"
	"github.com/partcraft/partcraft/internal/parts"
	"github.com/partcraft/partcraft/internal/pkgrepo"
	"github.com/partcraft/partcraft/internal/steps"
)

// resolveOptions loads config.Options from cmd's bound flags, defaulting
// work-dir to the process's current directory.
func resolveOptions(v *viper.Viper) (config.Options, error) {
	workDir := v.GetString("work-dir")
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Options{}, fmt.Errorf("resolve work dir: %w", err)
		}
		workDir = wd
	}
	return config.Load(v, workDir)
}

// newManager resolves Options, loads the parts file, and assembles a
// lifecycle.Manager ready for Plan/Execute/Clean.
func newManager(v *viper.Viper) (*lifecycle.Manager, error) {
	opts, err := resolveOptions(v)
	if err != nil {
		return nil, err
	}
	if err := opts.EnsureDirs(); err != nil {
		return nil, err
	}
	if err := logging.Setup(v.GetString("log-level")); err != nil {
		return nil, err
	}

	set, err := parts.LoadFile(opts.PartsFile)
	if err != nil {
		return nil, fmt.Errorf("load parts file: %w", err)
	}

	refPrefix := v.GetString("oci-ref-prefix")
	pkgs := &pkgrepo.OCIRepository{RefPrefix: refPrefix}
	snaps := &pkgrepo.OCISnapRepository{Packages: pkgs}

	return lifecycle.New(opts, set, pkgs, snaps)
}

// parseTargetStep maps a --target-step flag value (case-insensitive) to
// steps.Step, defaulting to steps.Prime.
func parseTargetStep(raw string) (steps.Step, error) {
	if raw == "" {
		return steps.Prime, nil
	}
	s, ok := steps.Parse(strings.ToUpper(raw))
	if !ok {
		return 0, fmt.Errorf("invalid target step %q (want one of pull, overlay, build, stage, prime)", raw)
	}
	return s, nil
}

func addTargetStepFlag(cmd *cobra.Command) {
	cmd.Flags().String("target-step", "prime", "furthest step to plan/execute: pull, overlay, build, stage, prime")
}

func printActions(cmd *cobra.Command, acts []actions.Action) {
	for _, a := range acts {
		fmt.Fprintln(cmd.OutOrStdout(), a.String())
	}
}
