package main

import (
	"github.com/aretw0/playbook/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved progress",
	Long:  `List, inspect, and remove the progress snapshots kept in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all saved runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.ListSessions(cmd.Context(), app)
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <workflow:incident>",
	Short: "Print the saved progress of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workflow, incident, err := cli.SplitKey(args[0])
		if err != nil {
			return err
		}
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.InspectSession(cmd.Context(), app, workflow, incident)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <workflow:incident>...",
	Short: "Remove the saved progress of one or more runs",
	Long:  `Removes local progress only. Answers already recorded by the incident service are kept.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.RemoveSessions(cmd.Context(), app, args)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
