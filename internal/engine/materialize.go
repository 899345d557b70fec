package engine

// materialize.go - execution strategies for view and table models

import (
	"context"
	"fmt"
	"strings"

	"github.com/meltworks/stagehand/internal/parser"
)

// ExecError wraps a warehouse failure while materializing a model.
type ExecError struct {
	ModelPath string
	SQL       string
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.ModelPath, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// materialize creates the model's relation from its rendered SQL.
func (e *Engine) materialize(ctx context.Context, m *parser.Model, sql string) (int64, error) {
	switch m.Materialized {
	case parser.MaterializedTable:
		return e.executeTable(ctx, m, sql)
	case parser.MaterializedView:
		return e.executeView(ctx, m, sql)
	default:
		return 0, &ExecError{ModelPath: m.Path, Err: fmt.Errorf("unknown materialization %q", m.Materialized)}
	}
}

// executeView creates or replaces a view.
func (e *Engine) executeView(ctx context.Context, m *parser.Model, sql string) (int64, error) {
	relation := m.Relation()

	if err := e.ensureSchema(ctx, relation); err != nil {
		return 0, &ExecError{ModelPath: m.Path, Err: err}
	}

	_ = e.db.Exec(ctx, fmt.Sprintf("DROP VIEW IF EXISTS %s", relation))

	createSQL := fmt.Sprintf("CREATE VIEW %s AS %s", relation, sql)
	if err := e.db.Exec(ctx, createSQL); err != nil {
		return 0, &ExecError{ModelPath: m.Path, SQL: createSQL, Err: err}
	}

	// Views carry no row count of their own.
	return 0, nil
}

// executeTable drops and recreates a table from the model's SQL.
func (e *Engine) executeTable(ctx context.Context, m *parser.Model, sql string) (int64, error) {
	relation := m.Relation()

	if err := e.ensureSchema(ctx, relation); err != nil {
		return 0, &ExecError{ModelPath: m.Path, Err: err}
	}

	_ = e.db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", relation))

	createSQL := fmt.Sprintf("CREATE TABLE %s AS %s", relation, sql)
	if err := e.db.Exec(ctx, createSQL); err != nil {
		return 0, &ExecError{ModelPath: m.Path, SQL: createSQL, Err: err}
	}

	rows, err := e.db.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", relation))
	if err != nil {
		return 0, nil // table created, count unavailable
	}
	defer func() { _ = rows.Close() }()

	var count int64
	if rows.Next() {
		_ = rows.Scan(&count)
	}
	return count, nil
}

// ensureSchema creates the schema part of a qualified relation if any.
func (e *Engine) ensureSchema(ctx context.Context, relation string) error {
	schema, _, ok := strings.Cut(relation, ".")
	if !ok {
		return nil
	}
	return e.db.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
}
