package main

import (
	"github.com/aretw0/playbook/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <workflow> <incident>",
	Short: "Answer the questions of a workflow for an incident",
	Long: `Starts or resumes the run of an incident. Answers already recorded by the
incident service are replayed, and the prompt opens on the first unanswered question.
Type 'skip' on optional questions and 'quit' to pause; progress is kept.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")
		fresh, _ := cmd.Flags().GetBool("fresh")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.RunSession(cmd.Context(), app, cli.RunOptions{
			Workflow: args[0],
			Incident: args[1],
			JSON:     jsonMode,
			Plain:    plain,
			Fresh:    fresh,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().Bool("plain", false, "Disable the banner and markdown rendering")
	runCmd.Flags().Bool("fresh", false, "Discard local progress before starting")
}
