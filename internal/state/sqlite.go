package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates an unopened store. A nil logger means discard.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the database at path; ":memory:" creates a throwaway store.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("pinging state database: %w", err)
	}

	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under the engine's concurrent model execution.
	db.SetMaxOpenConns(1)

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", "path", path)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRun inserts a new run in the running state.
func (s *SQLiteStore) CreateRun(environment string) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		Environment: environment,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, environment, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Environment, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("completing run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, environment, status, COALESCE(error, ''), started_at, completed_at
		 FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, environment, status, COALESCE(error, ''), started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordModelRun inserts a model run and sets mr.ID.
func (s *SQLiteStore) RecordModelRun(mr *ModelRun) error {
	if mr.Status == "" {
		mr.Status = ModelRunStatusPending
	}
	if mr.StartedAt.IsZero() {
		mr.StartedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(
		`INSERT INTO model_runs (run_id, model_path, status, rows_affected, error, execution_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mr.RunID, mr.ModelPath, string(mr.Status), mr.RowsAffected, mr.Error, mr.ExecutionMS, mr.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("recording model run: %w", err)
	}
	mr.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading model run id: %w", err)
	}
	return nil
}

// UpdateModelRun updates the status and outcome of a model run. Terminal
// statuses also set completed_at.
func (s *SQLiteStore) UpdateModelRun(id int64, status ModelRunStatus, rowsAffected int64, errMsg string, executionMS int64) error {
	var completedAt any
	switch status {
	case ModelRunStatusSuccess, ModelRunStatusFailed, ModelRunStatusSkipped:
		completedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`UPDATE model_runs SET status = ?, rows_affected = ?, error = ?, execution_ms = ?, completed_at = ?
		 WHERE id = ?`,
		string(status), rowsAffected, errMsg, executionMS, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("updating model run: %w", err)
	}
	return nil
}

// ModelRunsForRun returns all model runs of a run, oldest first.
func (s *SQLiteStore) ModelRunsForRun(runID string) ([]*ModelRun, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, model_path, status, rows_affected, COALESCE(error, ''), execution_ms, started_at, completed_at
		 FROM model_runs WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing model runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ModelRun
	for rows.Next() {
		mr, err := scanModelRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mr)
	}
	return out, rows.Err()
}

// LatestModelRun returns the most recent model run for a model path, or
// nil if the model has never run.
func (s *SQLiteStore) LatestModelRun(modelPath string) (*ModelRun, error) {
	row := s.db.QueryRow(
		`SELECT id, run_id, model_path, status, rows_affected, COALESCE(error, ''), execution_ms, started_at, completed_at
		 FROM model_runs WHERE model_path = ? ORDER BY id DESC LIMIT 1`, modelPath,
	)
	mr, err := scanModelRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return mr, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var status string
	if err := row.Scan(&run.ID, &run.Environment, &status, &run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	return &run, nil
}

func scanModelRun(row scanner) (*ModelRun, error) {
	var mr ModelRun
	var status string
	if err := row.Scan(&mr.ID, &mr.RunID, &mr.ModelPath, &status, &mr.RowsAffected, &mr.Error, &mr.ExecutionMS, &mr.StartedAt, &mr.CompletedAt); err != nil {
		return nil, err
	}
	mr.Status = ModelRunStatus(status)
	return &mr, nil
}

var _ Store = (*SQLiteStore)(nil)
