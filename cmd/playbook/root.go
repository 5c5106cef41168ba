package main

import (
	"fmt"
	"os"

	"github.com/aretw0/playbook/internal/cli"
	"github.com/aretw0/playbook/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "playbook",
	Short: "Playbook walks incidents through their response workflows",
	Long: `Playbook guides an operator through the question graph of an incident-response
workflow, submits each answer to the incident service and resumes interrupted
runs where they stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Empty values fall back to playbook.yaml, PLAYBOOK_* variables and built-in defaults.
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./playbook.yaml)")
	flags.String("url", "", "Base URL of the incident service")
	flags.Duration("timeout", 0, "Timeout of each call to the incident service")
	flags.String("fixture", "", "Serve workflows from a YAML fixture instead of the incident service")
	flags.String("store", "", "Progress store: memory, file, redis or sqlite")
	flags.String("store-path", "", "Directory (file) or database path (sqlite) of the progress store")
	flags.String("redis-addr", "", "Redis address for the redis store")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("log-json", false, "Write logs as JSON")
}

// loadApp builds the application from configuration and the command's flags.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return cli.NewApp(cfg)
}
