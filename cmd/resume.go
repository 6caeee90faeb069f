package main

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <config.yaml>",
	Short: "Continue an interrupted profile",
	Long: `Continues the run with the same samples_label and profiled_parameter.
The saved anchor is reused and each direction restarts one increment past
its last recorded point. profile_min and profile_max may be widened between
runs; the increment, parameter and backend must not change.
A direction that stopped after halt_after_failures consecutive unconverged
points stays stopped; raise halt_after_failures (or set it to 0) to extend it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), args[0], true)
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
