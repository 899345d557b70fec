// Package duckdb implements the stagehand adapter for DuckDB.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/meltworks/stagehand/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

const defaultSchema = "main"

// Adapter connects to a DuckDB database, file-backed or in-memory.
type Adapter struct {
	adapter.Base
}

// New creates an unconnected DuckDB adapter. A nil logger means discard.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{Base: adapter.Base{Logger: logger}}
}

// Connect opens the database at cfg.Path, or an in-memory database when
// the path is empty or ":memory:".
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", "path", path)

	db, err := sql.Open("duckdb", dsn(path))
	if err != nil {
		return fmt.Errorf("opening duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// dsn normalizes a database path into a DuckDB DSN.
func dsn(path string) string {
	if path == ":memory:" {
		return ""
	}
	return path
}

// TableMetadata probes a relation via information_schema.
func (a *Adapter) TableMetadata(ctx context.Context, relation string) (*adapter.TableMetadata, error) {
	return a.Introspect(ctx, relation, defaultSchema, "?")
}

// LoadCSV replaces the named table with the contents of a CSV file,
// letting DuckDB infer the schema.
func (a *Adapter) LoadCSV(ctx context.Context, table, path string) error {
	if !a.Connected() {
		return fmt.Errorf("not connected")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving csv path: %w", err)
	}

	stmt := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
		table, absPath,
	)
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("loading csv into %s: %w", table, err)
	}
	return nil
}

// DefaultSchema returns DuckDB's default schema.
func (a *Adapter) DefaultSchema() string {
	return defaultSchema
}

var _ adapter.Adapter = (*Adapter)(nil)
