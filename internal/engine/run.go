package engine

// run.go - two-phase run orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meltworks/stagehand/internal/dag"
	"github.com/meltworks/stagehand/internal/parser"
	"github.com/meltworks/stagehand/internal/state"
)

// preparedModel is a model that rendered successfully and is ready to
// execute.
type preparedModel struct {
	model    *parser.Model
	modelRun *state.ModelRun
	sql      string
}

// Run executes all discovered models.
//
// Phase 1 renders every model so a bad source reference fails the run
// before anything touches the warehouse. Phase 2 executes the models
// level by level: models within a level share no dependencies and run
// concurrently, bounded by the jobs setting.
func (e *Engine) Run(ctx context.Context) (*state.Run, error) {
	return e.run(ctx, e.graph)
}

// RunSelected executes only the given models, optionally including
// everything downstream of them. Upstream relations must already exist
// in the warehouse.
func (e *Engine) RunSelected(ctx context.Context, modelPaths []string, includeDownstream bool) (*state.Run, error) {
	for _, path := range modelPaths {
		if _, ok := e.models[path]; !ok {
			return nil, fmt.Errorf("unknown model %q", path)
		}
	}

	selected := modelPaths
	if includeDownstream {
		selected = e.graph.Downstream(modelPaths)
	}

	e.logger.Info("starting selected run", "models", selected)
	return e.run(ctx, e.graph.Subgraph(selected))
}

func (e *Engine) run(ctx context.Context, graph *dag.Graph) (*state.Run, error) {
	e.logger.Info("starting run", "environment", e.environment, "models", graph.Len())

	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(e.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	sorted, err := graph.Sort()
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, fmt.Sprintf("dependency sort failed: %v", err))
		return run, err
	}

	e.logger.Debug("rendering models", "count", len(sorted))

	prepared, renderErrors := e.prepareModels(run.ID, sorted)
	if len(renderErrors) > 0 {
		for _, p := range prepared {
			_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusSkipped, 0,
				"run aborted: other models failed to render", 0)
		}

		errMsg := fmt.Sprintf("%d model(s) failed to render", len(renderErrors))
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, errMsg)

		e.logger.Error("run failed during rendering", "run_id", run.ID, "render_errors", len(renderErrors))
		run, _ = e.store.GetRun(run.ID)
		return run, errors.Join(renderErrors...)
	}

	levels, err := graph.Levels()
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		return run, err
	}

	e.logger.Debug("executing models", "count", len(prepared), "levels", len(levels), "jobs", e.jobs)

	runErr := e.executeLevels(ctx, levels, prepared)

	if runErr != nil {
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("run completed", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	run, _ = e.store.GetRun(run.ID)
	return run, runErr
}

// prepareModels renders every model and records a pending model run for
// each. Render failures are collected; successfully rendered models are
// still returned so they can be marked skipped.
func (e *Engine) prepareModels(runID string, sorted []*dag.Node) ([]preparedModel, []error) {
	var prepared []preparedModel
	var renderErrors []error

	for _, node := range sorted {
		m := node.Data.(*parser.Model)

		modelRun := &state.ModelRun{RunID: runID, ModelPath: m.Path}
		if err := e.store.RecordModelRun(modelRun); err != nil {
			renderErrors = append(renderErrors, fmt.Errorf("%s: failed to record model run: %w", m.Path, err))
			continue
		}

		sql, err := e.renderSQL(m)
		if err != nil {
			_ = e.store.UpdateModelRun(modelRun.ID, state.ModelRunStatusFailed, 0, err.Error(), 0)
			renderErrors = append(renderErrors, err)
			continue
		}

		e.logger.Debug("model rendered", "model", m.Path)
		prepared = append(prepared, preparedModel{model: m, modelRun: modelRun, sql: sql})
	}

	return prepared, renderErrors
}

// executeLevels runs prepared models level by level. Models within a
// level are independent and run concurrently. A failure stops the run
// after the current level; everything deeper is marked skipped.
func (e *Engine) executeLevels(ctx context.Context, levels [][]string, prepared []preparedModel) error {
	byPath := make(map[string]preparedModel, len(prepared))
	for _, p := range prepared {
		byPath[p.model.Path] = p
	}

	var mu sync.Mutex
	var failed []string
	var firstErr error

	for i, level := range levels {
		if len(failed) > 0 {
			// Upstream failure poisons every deeper level.
			for _, path := range flatten(levels[i:]) {
				if p, ok := byPath[path]; ok {
					_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusSkipped, 0,
						fmt.Sprintf("skipped: upstream model %s failed", failed[0]), 0)
				}
			}
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.jobs)

		for _, path := range level {
			p, ok := byPath[path]
			if !ok {
				continue
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusSkipped, 0,
						"skipped: run canceled", 0)
					return gctx.Err()
				}
				err := e.executeOne(gctx, p)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					failed = append(failed, p.model.Path)
					mu.Unlock()
				}
				return err
			})
		}

		if err := g.Wait(); err != nil {
			// Finish marking deeper levels skipped on the next loop pass,
			// then surface the first failure.
			continue
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d model(s) failed (first: %s): %w", len(failed), failed[0], firstErr)
	}
	return nil
}

// executeOne materializes one model and records the outcome.
func (e *Engine) executeOne(ctx context.Context, p preparedModel) error {
	_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusRunning, 0, "", 0)

	start := time.Now()
	rowsAffected, err := e.materialize(ctx, p.model, p.sql)
	executionMS := time.Since(start).Milliseconds()

	if err != nil {
		e.logger.Debug("model execution failed", "model", p.model.Path, "error", err)
		_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusFailed, 0, err.Error(), executionMS)
		return err
	}

	e.logger.Debug("model executed", "model", p.model.Path, "rows", rowsAffected, "exec_ms", executionMS)
	_ = e.store.UpdateModelRun(p.modelRun.ID, state.ModelRunStatusSuccess, rowsAffected, "", executionMS)
	return nil
}

func flatten(levels [][]string) []string {
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out
}
