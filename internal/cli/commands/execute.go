package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewExecuteCommand returns the `partcraft execute` command: runs the
// plan for a target step, printing each action as it is dispatched
// (spec.md §2's execute(actions)).
func NewExecuteCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute [part-names...]",
		Short: "Plan and run the action sequence for a target step",
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

			acts, err := mgr.Execute(cmd.Context(), targetStep, args)
			printActions(cmd, acts)
			return err
		},
	}
	addTargetStepFlag(cmd)
	return cmd
}
