package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/output"
	"github.com/meltworks/stagehand/internal/engine"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the warehouse",
		Long: `Execute SQL against the configured warehouse target.

Useful for inspecting staged relations and raw source tables. Reads SQL
from the argument, --input, or stdin. When invoked on a terminal without
arguments, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  stagehand query "SELECT * FROM staging.stg_accounts LIMIT 10"

  # Output as JSON
  stagehand query "SELECT COUNT(*) FROM fortnox_raw.accounts" --format json

  # Pipe SQL in
  echo "SELECT 1" | stagehand query

  # Interactive mode
  stagehand query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cfg := getConfig(cmd)

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runQueryREPL(cmd, eng, cfg.StatePath, opts)
	}

	return executeAndRender(cmd, eng, sqlQuery, opts.Format)
}

func executeAndRender(cmd *cobra.Command, eng *engine.Engine, sqlQuery, format string) error {
	rows, err := eng.Query(cmd.Context(), sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return output.RenderRows(cmd.OutOrStdout(), rows.Rows, format)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
