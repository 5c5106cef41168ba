package main

import (
	"os"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow> <incident>",
	Short: "Check whether an incident has finished its workflow",
	Long:  `Exits 0 when the last question of the workflow is answered and 2 while the run is in progress.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		done, err := cli.PrintStatus(cmd.Context(), app, args[0], args[1])
		if err != nil {
			return err
		}
		if !done {
			_ = app.Close()
			os.Exit(2)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
