package engine

// discovery.go - model discovery and dependency graph construction

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meltworks/stagehand/internal/dag"
	"github.com/meltworks/stagehand/internal/parser"
)

// DiscoveryResult summarizes a discovery pass.
type DiscoveryResult struct {
	ModelsTotal int
	Errors      []DiscoveryError
	Duration    time.Duration
}

// DiscoveryError is a non-fatal per-file problem found during discovery.
type DiscoveryError struct {
	Path    string
	Message string
}

// HasErrors reports whether any per-file errors occurred.
func (r *DiscoveryResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Summary returns a one-line human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf("Models: %d | Errors: %d | Duration: %s",
		r.ModelsTotal, len(r.Errors), r.Duration.Round(time.Millisecond))
}

// Discover walks the models directory, parses every .sql file and
// rebuilds the dependency graph. Parse failures are collected per file;
// a cycle or an unresolvable ref is fatal.
func (e *Engine) Discover() (*DiscoveryResult, error) {
	start := time.Now()
	result := &DiscoveryResult{}

	e.logger.Info("starting discovery", "models_dir", e.modelsDir)

	if _, err := os.Stat(e.modelsDir); err != nil {
		return result, fmt.Errorf("models directory %s: %w", e.modelsDir, err)
	}

	p := &parser.Parser{BaseDir: e.modelsDir}
	models := make(map[string]*parser.Model)

	err := filepath.WalkDir(e.modelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		m, err := p.ParseFile(path)
		if err != nil {
			result.Errors = append(result.Errors, DiscoveryError{Path: path, Message: err.Error()})
			return nil
		}
		if existing, ok := models[m.Path]; ok {
			result.Errors = append(result.Errors, DiscoveryError{
				Path:    path,
				Message: fmt.Sprintf("duplicate model path %s (already defined in %s)", m.Path, existing.FilePath),
			})
			return nil
		}

		models[m.Path] = m
		e.logger.Debug("discovered model", "path", m.Path, "file", path)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking models directory: %w", err)
	}

	graph, err := buildGraph(models)
	if err != nil {
		return result, err
	}

	e.models = models
	e.graph = graph
	result.ModelsTotal = len(models)
	result.Duration = time.Since(start)

	e.logger.Info("discovery completed",
		"models_total", result.ModelsTotal,
		"errors", len(result.Errors),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// buildGraph constructs the model dependency graph. Edges come from
// ref() calls; source() references are external and add no edges.
func buildGraph(models map[string]*parser.Model) (*dag.Graph, error) {
	g := dag.New()

	paths := make([]string, 0, len(models))
	for path := range models {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		g.Add(path, models[path])
	}
	for _, path := range paths {
		for _, ref := range models[path].Refs {
			target, err := resolveRef(models, path, ref)
			if err != nil {
				return nil, err
			}
			if err := g.Depend(target, path); err != nil {
				return nil, err
			}
		}
	}

	if _, err := g.Sort(); err != nil {
		return nil, err
	}
	return g, nil
}

// resolveRef maps a ref() argument to a model path. Refs may be fully
// qualified ("staging.stg_accounts") or a bare model name when it is
// unambiguous.
func resolveRef(models map[string]*parser.Model, from, ref string) (string, error) {
	if _, ok := models[ref]; ok {
		return ref, nil
	}

	var matches []string
	for path, m := range models {
		if m.Name == ref {
			matches = append(matches, path)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("model %s references unknown model %q", from, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("model %s: ref %q is ambiguous (matches %s)", from, ref, strings.Join(matches, ", "))
	}
}
