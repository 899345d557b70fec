// Package commands implements the stagehand subcommands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/meltworks/stagehand/internal/cli/config"
	"github.com/meltworks/stagehand/internal/engine"
	"github.com/meltworks/stagehand/internal/parser"
)

// sortedModels returns discovered models in a stable path order.
func sortedModels(eng *engine.Engine) []*parser.Model {
	models := eng.Models()
	paths := make([]string, 0, len(models))
	for path := range models {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	out := make([]*parser.Model, 0, len(paths))
	for _, path := range paths {
		out = append(out, models[path])
	}
	return out
}

// getConfig retrieves the loaded config from the command context.
func getConfig(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

// createEngine builds an engine from the CLI configuration.
func createEngine(cmd *cobra.Command, cfg *config.Config) (*engine.Engine, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	return engine.New(engine.Config{
		ModelsDir:   cfg.ModelsDir,
		SeedsDir:    cfg.SeedsDir,
		SourcesPath: cfg.SourcesPath,
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Adapter:     cfg.AdapterConfig(),
		Jobs:        cfg.Jobs,
		Logger:      config.GetLogger(cmd.Context()),
	})
}
