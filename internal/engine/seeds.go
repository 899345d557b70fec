package engine

// seeds.go - CSV seed loading into source relations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SeedResult describes one loaded seed file.
type SeedResult struct {
	Namespace string
	Table     string
	Relation  string
	Path      string
}

// LoadSeeds loads every CSV under the seeds directory into the
// warehouse. Files live at seeds/<namespace>/<table>.csv and land in
// the relation the source catalog resolves for that pair, so seeded
// data is indistinguishable from extracted data to the models.
func (e *Engine) LoadSeeds(ctx context.Context) ([]SeedResult, error) {
	if e.seedsDir == "" {
		return nil, nil
	}

	e.logger.Debug("loading seeds", "seeds_dir", e.seedsDir)

	entries, err := os.ReadDir(e.seedsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seeds directory: %w", err)
	}

	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}

	var results []SeedResult
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		namespace := entry.Name()

		files, err := os.ReadDir(filepath.Join(e.seedsDir, namespace))
		if err != nil {
			return results, fmt.Errorf("failed to read seeds for namespace %s: %w", namespace, err)
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".csv") {
				continue
			}

			table := strings.TrimSuffix(f.Name(), ".csv")
			csvPath := filepath.Join(e.seedsDir, namespace, f.Name())

			relation := e.seedRelation(namespace, table)

			if err := e.ensureSchema(ctx, relation); err != nil {
				return results, fmt.Errorf("failed to create schema for seed %s: %w", relation, err)
			}

			e.logger.Debug("loading seed file", "relation", relation, "path", csvPath)
			if err := e.db.LoadCSV(ctx, relation, csvPath); err != nil {
				return results, fmt.Errorf("failed to load seed %s/%s: %w", namespace, f.Name(), err)
			}

			results = append(results, SeedResult{
				Namespace: namespace,
				Table:     table,
				Relation:  relation,
				Path:      csvPath,
			})
		}
	}

	return results, nil
}

// seedRelation resolves the target relation for a seed file. Catalog
// entries win so identifier and schema overrides apply; files without a
// catalog entry land in <namespace>.<table>.
func (e *Engine) seedRelation(namespace, table string) string {
	if rel, err := e.catalog.Resolve(namespace, table); err == nil {
		return rel.Qualified()
	}
	return namespace + "." + table
}
