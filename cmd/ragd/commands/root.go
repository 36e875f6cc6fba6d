// Package commands defines all Cobra CLI commands for the ragd binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ragd-io/ragd/internal/audit"
	"github.com/ragd-io/ragd/internal/config"
	"github.com/ragd-io/ragd/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragd",
		Short: "ragd — retrieval-augmented question answering over an institutional corpus",
		Long: `ragd answers natural language questions about an institution on behalf of
its staff.

It retrieves supporting documents from a two-tier vector store — a volatile
short-term store fed by a mailbox scraper and an archival long-term store —
re-ranks them with late-interaction scoring, and hands the assembled context
to an LLM agent that can also fall back to web search.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragd/config.yaml).
See 'ragd --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragd/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
