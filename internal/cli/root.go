// Package cli provides the command-line interface for stagehand.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/commands"
	"github.com/meltworks/stagehand/internal/cli/config"

	// Register warehouse adapters.
	_ "github.com/meltworks/stagehand/pkg/adapters/duckdb"
	_ "github.com/meltworks/stagehand/pkg/adapters/postgres"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Stagehand - SQL staging layer runner",
		Long: `Stagehand materializes staging models over raw extracted tables.

Models are SQL files with optional YAML frontmatter; a model that only
declares a source becomes a full passthrough of that raw table. Models
run in dependency order against DuckDB or Postgres, with run history
kept in a local SQLite database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Verbose)

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = config.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.ConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./stagehand.yaml)")
	pf.String("project-dir", "", "Project root directory")
	pf.String("models-dir", "", "Path to models directory")
	pf.String("seeds-dir", "", "Path to seeds directory")
	pf.String("sources", "", "Path to source catalog file")
	pf.String("state", "", "Path to state database")
	pf.StringP("environment", "e", "", "Environment name (dev, staging, prod)")
	pf.IntP("jobs", "j", 0, "Maximum concurrent model executions")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|table|markdown|json|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "table", "markdown", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("environment", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"dev", "staging", "prod"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewSourcesCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())

	return rootCmd
}

// newLogger builds the CLI logger. Non-verbose runs log nothing;
// verbose runs log debug output to stderr.
func newLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
