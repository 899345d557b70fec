package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(nil)
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndCompleteRun(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("dev")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, "dev", run.Environment)

	require.NoError(t, s.CompleteRun(run.ID, RunStatusCompleted, ""))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestCompleteRunWithError(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("dev")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(run.ID, RunStatusFailed, "model staging.stg_accounts failed"))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "stg_accounts")
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openStore(t)

	first, err := s.CreateRun("dev")
	require.NoError(t, err)

	// started_at has sub-second precision; make ordering unambiguous.
	time.Sleep(5 * time.Millisecond)

	second, err := s.CreateRun("prod")
	require.NoError(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestModelRunLifecycle(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("dev")
	require.NoError(t, err)

	mr := &ModelRun{RunID: run.ID, ModelPath: "staging.stg_accounts"}
	require.NoError(t, s.RecordModelRun(mr))
	assert.NotZero(t, mr.ID)
	assert.Equal(t, ModelRunStatusPending, mr.Status)

	require.NoError(t, s.UpdateModelRun(mr.ID, ModelRunStatusSuccess, 42, "", 120))

	got, err := s.ModelRunsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ModelRunStatusSuccess, got[0].Status)
	assert.Equal(t, int64(42), got[0].RowsAffected)
	assert.Equal(t, int64(120), got[0].ExecutionMS)
	require.NotNil(t, got[0].CompletedAt)
}

func TestLatestModelRun(t *testing.T) {
	s := openStore(t)

	run, err := s.CreateRun("dev")
	require.NoError(t, err)

	first := &ModelRun{RunID: run.ID, ModelPath: "staging.stg_assets_types"}
	require.NoError(t, s.RecordModelRun(first))
	require.NoError(t, s.UpdateModelRun(first.ID, ModelRunStatusFailed, 0, "relation missing", 10))

	second := &ModelRun{RunID: run.ID, ModelPath: "staging.stg_assets_types"}
	require.NoError(t, s.RecordModelRun(second))
	require.NoError(t, s.UpdateModelRun(second.ID, ModelRunStatusSuccess, 7, "", 15))

	latest, err := s.LatestModelRun("staging.stg_assets_types")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, ModelRunStatusSuccess, latest.Status)

	none, err := s.LatestModelRun("staging.never_ran")
	require.NoError(t, err)
	assert.Nil(t, none)
}
