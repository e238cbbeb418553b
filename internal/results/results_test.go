package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouseful-PR/nbval/internal/driver"
	"github.com/ouseful-PR/nbval/internal/runner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(path string) runner.RunResult {
	return runner.RunResult{
		NotebookPath: path,
		KernelName:   "python3",
		Started:      time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		Duration:     3 * time.Second,
		Cells: []runner.CellResult{
			{Index: 0, Status: runner.StatusPass, Duration: time.Second},
			{Index: 1, Status: runner.StatusSkip},
			{Index: 2, Status: runner.StatusFail, Duration: 2 * time.Second,
				Err: &driver.CellError{
					CellNum: 2,
					Code:    driver.CodeComparisonMismatch,
					Message: "Cell outputs differ",
				}},
		},
	}
}

func TestRecordRunAndHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.RecordRun(ctx, sampleRun("demo.ipynb"))
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	history, err := s.History(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	assert.Equal(t, runID, got.ID)
	assert.Equal(t, "demo.ipynb", got.NotebookPath)
	assert.Equal(t, "python3", got.KernelName)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 3*time.Second, got.Duration)
	assert.True(t, got.Started.Equal(sampleRun("demo.ipynb").Started))
}

func TestCells(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.RecordRun(ctx, sampleRun("demo.ipynb"))
	require.NoError(t, err)

	cells, err := s.Cells(ctx, runID)
	require.NoError(t, err)
	require.Len(t, cells, 3)

	assert.Equal(t, runner.StatusPass, cells[0].Status)
	assert.Empty(t, cells[0].FailureCode)

	failed := cells[2]
	assert.Equal(t, runner.StatusFail, failed.Status)
	assert.Equal(t, string(driver.CodeComparisonMismatch), failed.FailureCode)
	assert.Equal(t, "Cell outputs differ", failed.Message)
}

func TestHistory_FilterAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := sampleRun("a.ipynb")
	newer := sampleRun("a.ipynb")
	newer.Started = older.Started.Add(time.Hour)
	_, err := s.RecordRun(ctx, older)
	require.NoError(t, err)
	newestID, err := s.RecordRun(ctx, newer)
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, sampleRun("b.ipynb"))
	require.NoError(t, err)

	history, err := s.History(ctx, "a.ipynb", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newestID, history[0].ID, "newest run first")

	history, err = s.History(ctx, "a.ipynb", 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, s2.Close())
}
