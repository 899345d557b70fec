// Package engine orchestrates staging model execution: it discovers
// models on disk, resolves their raw-table references against the
// source catalog, and materializes them in dependency order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/meltworks/stagehand/internal/dag"
	"github.com/meltworks/stagehand/internal/parser"
	"github.com/meltworks/stagehand/internal/source"
	"github.com/meltworks/stagehand/internal/state"
	"github.com/meltworks/stagehand/pkg/adapter"
)

// Engine coordinates discovery, rendering and execution of models.
type Engine struct {
	// Warehouse adapter, connected lazily on first execution.
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger

	store       state.Store
	catalog     *source.Catalog
	modelsDir   string
	seedsDir    string
	sourcesPath string
	environment string
	jobs        int

	graph  *dag.Graph
	models map[string]*parser.Model
}

// Config holds engine configuration.
type Config struct {
	// ModelsDir is the path to the models directory.
	ModelsDir string
	// SeedsDir is the path to the seeds directory (optional).
	SeedsDir string
	// SourcesPath is the path to the source catalog file (optional;
	// models without source references work without one).
	SourcesPath string
	// StatePath is the path to the SQLite state database.
	StatePath string
	// Environment is the current environment (dev, staging, prod).
	Environment string
	// Adapter contains the warehouse connection configuration.
	Adapter adapter.Config
	// Jobs is the maximum number of models executed concurrently.
	// Zero or negative means serial execution.
	Jobs int
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates an engine. The warehouse connection is only established
// when Run, LoadSeeds or Query is called.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "models_dir", cfg.ModelsDir, "environment", cfg.Environment)

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state schema: %w", err)
	}

	catalog := source.Empty()
	if cfg.SourcesPath != "" {
		if _, err := os.Stat(cfg.SourcesPath); err == nil {
			catalog, err = source.Load(cfg.SourcesPath)
			if err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("failed to load source catalog: %w", err)
			}
		}
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	dbConfig := cfg.Adapter
	if dbConfig.Type == "" {
		dbConfig.Type = "duckdb"
	}

	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}

	return &Engine{
		dbConfig:    dbConfig,
		logger:      logger,
		store:       store,
		catalog:     catalog,
		modelsDir:   cfg.ModelsDir,
		seedsDir:    cfg.SeedsDir,
		sourcesPath: cfg.SourcesPath,
		environment: env,
		jobs:        jobs,
		graph:       dag.New(),
		models:      make(map[string]*parser.Model),
	}, nil
}

// ensureConnected lazily connects the warehouse adapter.
func (e *Engine) ensureConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to warehouse", "adapter_type", e.dbConfig.Type)

	db, err := adapter.New(e.dbConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}

	e.db = db
	e.dbConnected = true
	e.logger.Debug("warehouse connected")
	return nil
}

// Close releases the warehouse connection and the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}

// Query executes an ad-hoc query against the warehouse.
func (e *Engine) Query(ctx context.Context, sql string) (*adapter.Rows, error) {
	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return e.db.Query(ctx, sql)
}

// VerifySources probes every catalog entry against the warehouse.
func (e *Engine) VerifySources(ctx context.Context) ([]source.VerifyResult, error) {
	if err := e.ensureConnected(ctx); err != nil {
		return nil, err
	}
	return e.catalog.Verify(ctx, e.db), nil
}

// Graph returns the dependency graph built by Discover.
func (e *Engine) Graph() *dag.Graph {
	return e.graph
}

// Models returns all discovered models keyed by path.
func (e *Engine) Models() map[string]*parser.Model {
	return e.models
}

// Catalog returns the source catalog.
func (e *Engine) Catalog() *source.Catalog {
	return e.catalog
}

// StateStore returns the run history store.
func (e *Engine) StateStore() state.Store {
	return e.store
}

// Environment returns the active environment name.
func (e *Engine) Environment() string {
	return e.environment
}
