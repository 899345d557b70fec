// Package state persists run history in a local SQLite database. Each
// invocation of the engine creates a run; each model executed within it
// gets a model_run row with status, timing and row counts.
package state

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one engine invocation.
type Run struct {
	ID          string
	Environment string
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// ModelRunStatus is the lifecycle state of a single model within a run.
type ModelRunStatus string

const (
	ModelRunStatusPending ModelRunStatus = "pending"
	ModelRunStatusRunning ModelRunStatus = "running"
	ModelRunStatusSuccess ModelRunStatus = "success"
	ModelRunStatusFailed  ModelRunStatus = "failed"
	ModelRunStatusSkipped ModelRunStatus = "skipped"
)

// ModelRun records the execution of one model within a run.
type ModelRun struct {
	ID           int64
	RunID        string
	ModelPath    string
	Status       ModelRunStatus
	RowsAffected int64
	Error        string
	ExecutionMS  int64
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Store is the persistence contract used by the engine and CLI.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(environment string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordModelRun(mr *ModelRun) error
	UpdateModelRun(id int64, status ModelRunStatus, rowsAffected int64, errMsg string, executionMS int64) error
	ModelRunsForRun(runID string) ([]*ModelRun, error)
	LatestModelRun(modelPath string) (*ModelRun, error)
}
