package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewCleanCommand returns the `partcraft clean` command: removes a
// step's artifacts and state, and every step after it, for the selected
// parts (spec.md §4.5; present in the original's CLI-facing
// lifecycle_manager.py but only implied by spec.md §3).
func NewCleanCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [part-names...]",
		Short: "Remove a step's artifacts and state, and every step after it",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(v)
			if err != nil {
				return err
			}
			targetStepFlag, _ := cmd.Flags().GetString("step")
			step, err := parseTargetStep(targetStepFlag)
			if err != nil {
				return err
			}
			return mgr.Clean(step, args)
		},
	}
	cmd.Flags().String("step", "pull", "earliest step to remove: pull, overlay, build, stage, prime")
	return cmd
}
