// Package postgres implements the stagehand adapter for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/meltworks/stagehand/pkg/adapter"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

const defaultSchema = "public"

// Adapter connects to a PostgreSQL database via pgx.
type Adapter struct {
	adapter.Base
}

// New creates an unconnected Postgres adapter. A nil logger means discard.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{Base: adapter.Base{Logger: logger}}
}

// Connect establishes a connection using keyword/value DSN settings.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Logger.Debug("connecting to postgres", "host", cfg.Host, "database", cfg.Database)

	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return fmt.Errorf("opening postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging postgres: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// DSN builds a key=value connection string from cfg, defaulting host to
// localhost, port to 5432 and sslmode to disable.
func DSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += " user=" + cfg.Username
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}

// TableMetadata probes a relation via information_schema.
func (a *Adapter) TableMetadata(ctx context.Context, relation string) (*adapter.TableMetadata, error) {
	return a.Introspect(ctx, relation, defaultSchema, "$")
}

// LoadCSV replaces the named table with the contents of a CSV file. All
// columns are created as TEXT; staging models are expected to cast.
func (a *Adapter) LoadCSV(ctx context.Context, table, path string) error {
	if !a.Connected() {
		return fmt.Errorf("not connected")
	}

	f, err := os.Open(path) //nolint:gosec // path comes from the seeds directory walk
	if err != nil {
		return fmt.Errorf("opening csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading csv header: %w", err)
	}

	if err := a.replaceTextTable(ctx, table, header); err != nil {
		return err
	}
	return a.insertRows(ctx, table, header, reader)
}

// replaceTextTable drops and recreates the table with TEXT columns.
func (a *Adapter) replaceTextTable(ctx context.Context, table string, columns []string) error {
	if err := a.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return err
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = sanitizeIdentifier(col) + " TEXT"
	}
	return a.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", ")))
}

// insertRows streams the remaining CSV records as batched inserts.
func (a *Adapter) insertRows(ctx context.Context, table string, columns []string, reader *csv.Reader) error {
	const batchSize = 500

	cols := make([]string, len(columns))
	for i, col := range columns {
		cols[i] = sanitizeIdentifier(col)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	var (
		placeholders []string
		args         []any
		n            int
	)
	flush := func() error {
		if n == 0 {
			return nil
		}
		if _, err := a.DB.ExecContext(ctx, prefix+strings.Join(placeholders, ", "), args...); err != nil {
			return fmt.Errorf("inserting csv rows: %w", err)
		}
		placeholders = placeholders[:0]
		args = args[:0]
		n = 0
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading csv: %w", err)
		}

		ph := make([]string, len(record))
		for i, v := range record {
			ph[i] = fmt.Sprintf("$%d", len(args)+i+1)
			args = append(args, v)
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ", ")+")")
		n++

		if n >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// DefaultSchema returns Postgres's default schema.
func (a *Adapter) DefaultSchema() string {
	return defaultSchema
}

var identPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeIdentifier strips characters that are not valid in an unquoted
// identifier and lowercases the result.
func sanitizeIdentifier(name string) string {
	return strings.ToLower(identPattern.ReplaceAllString(strings.TrimSpace(name), "_"))
}

var _ adapter.Adapter = (*Adapter)(nil)
