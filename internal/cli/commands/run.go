package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCommand returns the `partcraft run` command: previews the plan,
// then executes it, combining `plan` and `execute` into one call for
// interactive use.
func NewRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [part-names...]",
		Short: "Preview the plan for a target step, then execute it",
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

			planned, err := mgr.Plan(targetStep, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "plan:")
			printActions(cmd, planned)

			fmt.Fprintln(cmd.OutOrStdout(), "executing:")
			acts, err := mgr.Execute(cmd.Context(), targetStep, args)
			printActions(cmd, acts)
			return err
		},
	}
	addTargetStepFlag(cmd)
	return cmd
}
