package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "investctl",
	Short: "Operational tooling for the investment lifecycle engine",
	Long: `investctl is the operator's companion to the investment engine.

It provides tools for:
  - Running the daily growth batch against the production database
  - Previewing accrual schedules before creating a plan`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
