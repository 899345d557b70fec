package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/config"
	"github.com/meltworks/stagehand/internal/cli/output"
	"github.com/meltworks/stagehand/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show run history",
		Long: `Show recent runs recorded in the state database, newest first.
With a run ID, shows the per-model results of that run.`,
		Example: `  # Show recent runs
  stagehand runs

  # Show the models of one run
  stagehand runs 2f1c8a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runRunDetail(cmd, args[0])
			}
			return runRunsList(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	return cmd
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(config.GetLogger(cmd.Context()))
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func runRunsList(cmd *cobra.Command, limit int) error {
	cfg := getConfig(cmd)

	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}

	records := make([][]string, 0, len(runs))
	for _, r := range runs {
		completed := ""
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02 15:04:05")
		}
		records = append(records, []string{
			r.ID,
			r.Environment,
			string(r.Status),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			completed,
			r.Error,
		})
	}

	return output.Render(cmd.OutOrStdout(),
		[]string{"Run", "Environment", "Status", "Started", "Completed", "Error"},
		records, cfg.OutputFormat)
}

func runRunDetail(cmd *cobra.Command, runID string) error {
	cfg := getConfig(cmd)

	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(runID)
	if err != nil {
		return fmt.Errorf("run %s not found: %w", runID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s): %s\n", run.ID, run.Environment, run.Status)
	if run.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", run.Error)
	}

	modelRuns, err := store.ModelRunsForRun(runID)
	if err != nil {
		return fmt.Errorf("failed to load model runs: %w", err)
	}

	records := make([][]string, 0, len(modelRuns))
	for _, mr := range modelRuns {
		records = append(records, []string{
			mr.ModelPath,
			string(mr.Status),
			fmt.Sprintf("%d", mr.RowsAffected),
			fmt.Sprintf("%dms", mr.ExecutionMS),
			mr.Error,
		})
	}

	return output.Render(cmd.OutOrStdout(),
		[]string{"Model", "Status", "Rows", "Time", "Error"},
		records, cfg.OutputFormat)
}
