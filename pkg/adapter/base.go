package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Base provides the database/sql plumbing shared by all SQL-backed
// adapters. Embed it and implement Connect, TableMetadata, LoadCSV and
// DefaultSchema in the concrete type.
type Base struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the underlying connection, if any.
func (b *Base) Close() error {
	if b.DB == nil {
		return nil
	}
	if b.Logger != nil {
		b.Logger.Debug("closing warehouse connection", "type", b.Cfg.Type)
	}
	return b.DB.Close()
}

// Exec runs a statement that returns no rows.
func (b *Base) Exec(ctx context.Context, stmt string) error {
	if b.DB == nil {
		return fmt.Errorf("not connected")
	}
	if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// Query runs a statement that returns rows. The caller owns the returned
// rows and must check rows.Err after iterating.
func (b *Base) Query(ctx context.Context, stmt string) (*Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("not connected")
	}
	rows, err := b.DB.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &Rows{Rows: rows}, nil
}

// Connected reports whether a connection has been established.
func (b *Base) Connected() bool {
	return b.DB != nil
}

// SplitRelation splits "schema.table" into its parts, falling back to
// defaultSchema for bare names.
func SplitRelation(relation, defaultSchema string) (schema, name string) {
	if parts := strings.SplitN(relation, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return defaultSchema, relation
}

// Introspect implements TableMetadata on top of information_schema.columns
// using the given placeholder style ("?" or "$"). Both supported backends
// expose the standard view, so concrete adapters delegate here.
func (b *Base) Introspect(ctx context.Context, relation, defaultSchema, placeholder string) (*TableMetadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("not connected")
	}

	schema, name := SplitRelation(relation, defaultSchema)

	p1, p2 := "?", "?"
	if placeholder == "$" {
		p1, p2 = "$1", "$2"
	}
	query := fmt.Sprintf(`
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position`, p1, p2)

	rows, err := b.DB.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("column probe failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("scanning column probe: %w", err)
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column probe: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("relation %s not found", relation)
	}

	// Row count is best effort.
	var count int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", schema, name) //nolint:gosec // identifiers come from config, not query results
	_ = b.DB.QueryRowContext(ctx, countQuery).Scan(&count)

	return &TableMetadata{Schema: schema, Name: name, Columns: cols, RowCount: count}, nil
}
