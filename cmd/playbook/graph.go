package main

import (
	"github.com/aretw0/playbook/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <workflow>",
	Short: "Export the question graph of a workflow",
	Long: `Outputs a Mermaid diagram (graph TD) of the workflow. With --edges, prints every
question with its resolved successors instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		incident, _ := cmd.Flags().GetString("incident")
		edges, _ := cmd.Flags().GetBool("edges")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.PrintGraph(cmd.Context(), app, args[0], cli.GraphOptions{Incident: incident, Edges: edges})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("incident", "", "Highlight the progress of this incident")
	graphCmd.Flags().Bool("edges", false, "Print the adjacency list instead of Mermaid")
}
