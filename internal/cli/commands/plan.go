package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewPlanCommand returns the `partcraft plan` command: computes the
// action sequence for a target step without running anything
// (spec.md §2's plan(target_step, part_names)).
func NewPlanCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [part-names...]",
		Short: "Print the action sequence for a target step without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(v)
			if err != nil {
				return err
			}
			targetStepFlag, _ := cmd.Flags().GetString("target-step")
			targetStep, err := parseTargetStep(targetStepFlag)
			if err != nil {
				return err
			}

			acts, err := mgr.Plan(targetStep, args)
			if err != nil {
				return err
			}
			printActions(cmd, acts)
			return nil
		},
	}
	addTargetStepFlag(cmd)
	return cmd
}
