package main

import (
	"fmt"
	"os"

	"github.com/bagula/platform/internal/config"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// defaultConfigPath is where every command looks for configuration unless
// told otherwise with --config.
const defaultConfigPath = "bagula.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bagula",
		Short: "Bagula — AI agent session analysis",
		Long:  "Bagula ingests agent session traces and mines them for cost, performance, quality, and regression opportunities.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newOpportunitiesCmd())
	cmd.AddCommand(newBaselineCmd())
	cmd.AddCommand(newCalibrateCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bagula %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadConfig reads the config file at path. When the default path does not
// exist the built-in defaults apply; an explicit --config must exist. The
// returned path is empty when no file backs the config, which disables hot
// reload.
func loadConfig(path string) (*config.Config, string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
