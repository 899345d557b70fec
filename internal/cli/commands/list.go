package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/output"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all models and their dependencies",
		Long: `List all discovered models in execution order with their
materialization, staged source and dependencies.`,
		Example: `  # List all models
  stagehand list

  # List models as JSON
  stagehand list --output json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
	return cmd
}

func runList(cmd *cobra.Command) error {
	cfg := getConfig(cmd)
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	result, err := eng.Discover()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	for _, de := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %s\n", de.Path, de.Message)
	}

	models := eng.Models()
	graph := eng.Graph()
	store := eng.StateStore()

	sorted, err := graph.Sort()
	if err != nil {
		return fmt.Errorf("failed to sort models: %w", err)
	}

	records := make([][]string, 0, len(sorted))
	for _, node := range sorted {
		m := models[node.ID]
		if m == nil {
			continue
		}

		src := ""
		if m.Source != nil {
			src = m.Source.Namespace + "." + m.Source.Table
		}

		lastRun := "never"
		if mr, err := store.LatestModelRun(m.Path); err == nil && mr != nil {
			lastRun = string(mr.Status)
		}

		records = append(records, []string{
			m.Path,
			m.Materialized,
			src,
			strings.Join(graph.Parents(node.ID), ", "),
			lastRun,
		})
	}

	return output.Render(cmd.OutOrStdout(),
		[]string{"Model", "Materialized", "Source", "Depends On", "Last Run"},
		records, cfg.OutputFormat)
}
