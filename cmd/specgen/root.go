package main

import (
	"github.com/spf13/cobra"

	"specgen/internal/common/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "specgen",
		Short: "Generate technical specifications from domains and Gherkin requirements",
		Long: `specgen aggregates a project's business domains, requirements and test cases,
assembles them into a prompt and asks a generation service for a versioned
technical specification. Runs are tracked as jobs in Postgres.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default configs/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newStatusCmd(),
		newReconcileCmd(),
		newParseCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}
