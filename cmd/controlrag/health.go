package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the connection to the control corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{}, func(a app) error {
			if err := a.CheckHealth(cmd.Context()); err != nil {
				cmd.Println(color.RedString("unhealthy: %v", err))
				return err
			}
			cmd.Println(color.GreenString("healthy"))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
