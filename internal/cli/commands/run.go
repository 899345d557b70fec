package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/output"
	"github.com/meltworks/stagehand/internal/state"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
	SkipSeeds  bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all models or specific models",
		Long: `Execute staging models against the warehouse in dependency order.

By default, runs all discovered models. Use --select to run specific models.
Use --downstream to also run models that depend on the selected models.
Independent models run concurrently, bounded by --jobs.`,
		Example: `  # Run all models
  stagehand run

  # Run specific models
  stagehand run --select staging.stg_accounts,staging.stg_assets_types

  # Run a model and its downstream dependents
  stagehand run --select staging.stg_accounts --downstream`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of models to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --select")
	cmd.Flags().BoolVar(&opts.SkipSeeds, "skip-seeds", false, "Do not load seed CSVs before running")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cfg := getConfig(cmd)
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx := cmd.Context()
	start := time.Now()
	out := cmd.OutOrStdout()

	if !opts.SkipSeeds {
		seeded, err := eng.LoadSeeds(ctx)
		if err != nil {
			return fmt.Errorf("failed to load seeds: %w", err)
		}
		if len(seeded) > 0 {
			fmt.Fprintf(out, "Loaded %d seed file(s)\n", len(seeded))
		}
	}

	result, err := eng.Discover()
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	for _, de := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %s\n", de.Path, de.Message)
	}
	fmt.Fprintf(out, "Found %d models\n", result.ModelsTotal)

	var run *state.Run
	var runErr error
	if opts.Select != "" {
		selected := splitSelect(opts.Select)
		run, runErr = eng.RunSelected(ctx, selected, opts.Downstream)
	} else {
		run, runErr = eng.Run(ctx)
	}
	if run == nil {
		return runErr
	}

	if err := printRunSummary(cmd, eng, run); err != nil {
		return errors.Join(runErr, err)
	}

	fmt.Fprintf(out, "Run %s: %s (%s)\n", run.ID, run.Status, time.Since(start).Round(time.Millisecond))
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	return runErr
}

func printRunSummary(cmd *cobra.Command, eng engineWithStore, run *state.Run) error {
	modelRuns, err := eng.StateStore().ModelRunsForRun(run.ID)
	if err != nil {
		return fmt.Errorf("failed to load run details: %w", err)
	}
	if len(modelRuns) == 0 {
		return nil
	}

	records := make([][]string, 0, len(modelRuns))
	for _, mr := range modelRuns {
		records = append(records, []string{
			mr.ModelPath,
			string(mr.Status),
			strconv.FormatInt(mr.RowsAffected, 10),
			fmt.Sprintf("%dms", mr.ExecutionMS),
			mr.Error,
		})
	}

	cfg := getConfig(cmd)
	return output.Render(cmd.OutOrStdout(),
		[]string{"Model", "Status", "Rows", "Time", "Error"}, records, cfg.OutputFormat)
}

// engineWithStore is the part of the engine the run summary needs.
type engineWithStore interface {
	StateStore() state.Store
}

func splitSelect(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
