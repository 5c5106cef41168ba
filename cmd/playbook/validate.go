package main

import (
	"github.com/aretw0/playbook/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow>",
	Short: "Check a workflow for broken links and unreachable questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ValidateWorkflow(cmd.Context(), app, args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
