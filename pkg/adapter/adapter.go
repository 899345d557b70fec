// Package adapter defines the warehouse adapter contract for stagehand.
//
// An adapter owns the connection to one target warehouse and exposes the
// small set of operations the staging engine needs: executing DDL/DML,
// running queries, probing table shape, and bulk-loading CSV seeds.
// Concrete implementations live in pkg/adapters/ subdirectories and
// register themselves by type name in their init() functions.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds connection settings for a target warehouse.
type Config struct {
	// Type selects the registered adapter implementation (duckdb, postgres).
	Type string
	// Path is the database file for file-based engines; empty means in-memory.
	Path string
	Host string
	Port int
	// Database is the logical database name (or file path for DuckDB).
	Database string
	Username string
	Password string
	// Schema is the default schema unqualified relations resolve to.
	Schema string
	// Options carries driver-specific settings such as sslmode.
	Options map[string]string
}

// Column describes one column of a relation.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableMetadata describes the shape of a relation at probe time.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows so callers don't depend on a concrete driver.
type Rows struct {
	*sql.Rows
}

// Adapter is implemented by every supported warehouse backend.
type Adapter interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Exec runs a statement that returns no rows (CREATE, DROP, INSERT).
	Exec(ctx context.Context, sql string) error

	// Query runs a statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// TableMetadata probes a relation ("schema.table" or bare name).
	// Returns an error if the relation does not exist.
	TableMetadata(ctx context.Context, relation string) (*TableMetadata, error)

	// LoadCSV bulk-loads a CSV file into the named table, replacing it.
	LoadCSV(ctx context.Context, table, path string) error

	// DefaultSchema is the schema unqualified names belong to.
	DefaultSchema() string
}
