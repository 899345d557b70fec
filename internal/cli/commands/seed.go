package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/output"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed CSV files into the warehouse",
		Long: `Load CSV files from the seeds directory into the warehouse.

Seed files live at seeds/<namespace>/<table>.csv and land in the
relation the source catalog resolves for that namespace and table, so
seeded data looks exactly like extracted data to the models.`,
		Example: `  # Load all seeds
  stagehand seed`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd)
		},
	}
	return cmd
}

func runSeed(cmd *cobra.Command) error {
	cfg := getConfig(cmd)

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	results, err := eng.LoadSeeds(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load seeds: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No seed files found in %s\n", cfg.SeedsDir)
		return nil
	}

	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, []string{r.Namespace, r.Table, r.Relation, r.Path})
	}

	if err := output.Render(cmd.OutOrStdout(),
		[]string{"Namespace", "Table", "Relation", "File"},
		records, cfg.OutputFormat); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d seed file(s)\n", len(results))
	return nil
}
