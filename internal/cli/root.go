// Package cli wires together the partcraft root Cobra command and the
// global flags every subcommand resolves into an internal/config.Options
// (spec.md's core is CLI-agnostic; this package is the wiring spec.md §6
// calls out as an external collaborator).
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partcraft/partcraft/internal/cli/commands"
)

// NewRootCommand constructs the partcraft root command and registers
// every lifecycle subcommand.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "partcraft",
		Short:         "partcraft builds multi-part projects from a declarative parts definition",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("work-dir", "", "project work-tree root (default: current directory)")
	cmd.PersistentFlags().String("parts-file", "", "path to the parts YAML definition (default: <work-dir>/parts.yaml)")
	cmd.PersistentFlags().String("target-arch", "", "target architecture for packages/snaps (default: host architecture)")
	cmd.PersistentFlags().String("base", "", "distribution base used to resolve stage/overlay packages, e.g. ubuntu@24.04")
	cmd.PersistentFlags().String("base-layer-hash", "", "hex layer hash the overlay chain starts from")
	cmd.PersistentFlags().String("oci-ref-prefix", "", "reference prefix packages/snaps are pulled from")
	cmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")

	_ = v.BindPFlag("work-dir", cmd.PersistentFlags().Lookup("work-dir"))
	_ = v.BindPFlag("parts-file", cmd.PersistentFlags().Lookup("parts-file"))
	_ = v.BindPFlag("target-arch", cmd.PersistentFlags().Lookup("target-arch"))
	_ = v.BindPFlag("base", cmd.PersistentFlags().Lookup("base"))
	_ = v.BindPFlag("base-layer-hash", cmd.PersistentFlags().Lookup("base-layer-hash"))
	_ = v.BindPFlag("oci-ref-prefix", cmd.PersistentFlags().Lookup("oci-ref-prefix"))
	_ = v.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	v.SetEnvPrefix("partcraft")
	v.AutomaticEnv()

	cmd.AddCommand(commands.NewPlanCommand(v))
	cmd.AddCommand(commands.NewExecuteCommand(v))
	cmd.AddCommand(commands.NewRunCommand(v))
	cmd.AddCommand(commands.NewCleanCommand(v))

	return cmd
}
