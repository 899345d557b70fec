package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/output"
)

// NewSourcesCommand creates the sources command group.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect the source catalog",
		Long: `List the raw tables declared in the source catalog, or verify
that they exist in the warehouse.`,
		Example: `  # List cataloged sources
  stagehand sources

  # Probe the warehouse for every cataloged table
  stagehand sources verify`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourcesList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check that every cataloged source exists in the warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourcesVerify(cmd)
		},
	})

	return cmd
}

func runSourcesList(cmd *cobra.Command) error {
	cfg := getConfig(cmd)

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	catalog := eng.Catalog()
	if catalog.Len() == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No sources cataloged (looked for %s)\n", cfg.SourcesPath)
		return nil
	}

	var records [][]string
	for _, ns := range catalog.Namespaces() {
		for _, table := range ns.Tables {
			rel, err := catalog.Resolve(ns.Name, table.Name)
			if err != nil {
				continue
			}
			records = append(records, []string{
				ns.Name,
				table.Name,
				rel.Qualified(),
				table.Description,
			})
		}
	}

	return output.Render(cmd.OutOrStdout(),
		[]string{"Namespace", "Table", "Relation", "Description"},
		records, cfg.OutputFormat)
}

func runSourcesVerify(cmd *cobra.Command) error {
	cfg := getConfig(cmd)

	eng, err := createEngine(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	results, err := eng.VerifySources(cmd.Context())
	if err != nil {
		return fmt.Errorf("source verification failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sources cataloged")
		return nil
	}

	var missing int
	records := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		detail := fmt.Sprintf("%d columns, %s rows", r.Columns, strconv.FormatInt(r.Rows, 10))
		if !r.Exists {
			status = "missing"
			detail = ""
			if r.Err != nil {
				detail = r.Err.Error()
			}
			missing++
		}
		records = append(records, []string{
			r.Namespace + "." + r.Table,
			r.Relation,
			status,
			detail,
		})
	}

	if err := output.Render(cmd.OutOrStdout(),
		[]string{"Source", "Relation", "Status", "Detail"},
		records, cfg.OutputFormat); err != nil {
		return err
	}

	if missing > 0 {
		return fmt.Errorf("%d source(s) missing from the warehouse", missing)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "All %d source(s) present\n", len(results))
	return nil
}
