package runner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouseful-PR/nbval/internal/config"
	"github.com/ouseful-PR/nbval/internal/driver"
	"github.com/ouseful-PR/nbval/internal/kernel"
	"github.com/ouseful-PR/nbval/internal/notebook"
	"github.com/ouseful-PR/nbval/internal/output"
	"github.com/ouseful-PR/nbval/internal/testutil"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.CellTimeout = 1
	cfg.OutputTimeout = 1
	return cfg
}

func plainCell(index int, text string) notebook.Cell {
	return notebook.Cell{
		Index:          index,
		Source:         fmt.Sprintf("expr_%d", index),
		ExecutionCount: index + 1,
		Outputs: []output.Output{
			output.ExecuteResult(map[string]any{"text/plain": text}, nil, index+1),
		},
	}
}

func resultScript(text string) testutil.CellScript {
	return testutil.CellScript{Events: []kernel.RawEvent{
		testutil.ResultEvent(map[string]any{"text/plain": text}, 1),
		testutil.IdleEvent(),
	}}
}

func TestRun_AllPass(t *testing.T) {
	nb := &notebook.Notebook{
		Path:       "demo.ipynb",
		KernelName: "python3",
		Cells:      []notebook.Cell{plainCell(0, "1"), plainCell(1, "2")},
	}
	s := &testutil.ScriptedSession{Scripts: []testutil.CellScript{
		resultScript("1"), resultScript("2"),
	}}

	res, err := Run(context.Background(), s, nb, testConfig(), nil)
	require.NoError(t, err)

	assert.False(t, res.Failed())
	assert.Equal(t, map[Status]int{StatusPass: 2}, res.Counts())
	assert.Equal(t, "python3", s.StartedFor)
	assert.Positive(t, s.StopCalls, "session is stopped after the run")
}

func TestRun_MismatchFails(t *testing.T) {
	nb := &notebook.Notebook{Cells: []notebook.Cell{plainCell(0, "expected")}}
	s := &testutil.ScriptedSession{Scripts: []testutil.CellScript{resultScript("actual")}}

	res, err := Run(context.Background(), s, nb, testConfig(), nil)
	require.NoError(t, err)

	assert.True(t, res.Failed())
	require.Len(t, res.Cells, 1)
	cell := res.Cells[0]
	assert.Equal(t, StatusFail, cell.Status)
	require.NotNil(t, cell.Err)
	assert.Equal(t, driver.CodeComparisonMismatch, cell.Err.Code)
	assert.NotEmpty(t, cell.Err.Trace)
}

func TestRun_SkipMarkedCells(t *testing.T) {
	skipped := plainCell(0, "1")
	skipped.Options.Skip = true
	nb := &notebook.Notebook{Cells: []notebook.Cell{skipped, plainCell(1, "2")}}

	// Only one script: the skipped cell must never reach the session.
	s := &testutil.ScriptedSession{Scripts: []testutil.CellScript{resultScript("2")}}

	res, err := Run(context.Background(), s, nb, testConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, map[Status]int{StatusSkip: 1, StatusPass: 1}, res.Counts())
	assert.Equal(t, []string{"expr_1"}, s.Sources)
}

func TestRun_TimeoutPoisonsLaterCells(t *testing.T) {
	nb := &notebook.Notebook{Cells: []notebook.Cell{
		plainCell(0, "1"),
		plainCell(1, "2"),
		plainCell(2, "3"),
	}}
	s := &testutil.ScriptedSession{Scripts: []testutil.CellScript{
		{
			ReplyTimesOut:    true,
			StallAfterEvents: true,
			InterruptEvents: []kernel.RawEvent{
				testutil.ErrorEvent("KeyboardInterrupt", "", "KeyboardInterrupt"),
				testutil.IdleEvent(),
			},
		},
		resultScript("wrong"),
		resultScript("3"),
	}}

	res, err := Run(context.Background(), s, nb, testConfig(), nil)
	require.NoError(t, err)

	require.Len(t, res.Cells, 3)
	assert.Equal(t, StatusFail, res.Cells[0].Status)
	assert.Equal(t, driver.CodeCellTimeout, res.Cells[0].Err.Code)
	assert.Equal(t, StatusExpectedFail, res.Cells[1].Status,
		"a mismatch after a timeout is anticipated, not a genuine failure")
	assert.Equal(t, StatusUnexpectedPass, res.Cells[2].Status)
	assert.True(t, res.Failed(), "the original timeout still fails the run")
}

func TestRun_KernelNamePrecedence(t *testing.T) {
	nb := &notebook.Notebook{KernelName: "julia-1.9"}
	s := &testutil.ScriptedSession{}
	cfg := testConfig()

	_, err := Run(context.Background(), s, nb, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "julia-1.9", s.StartedFor, "notebook kernelspec wins over the fallback")

	cfg.KernelName = "python3"
	s = &testutil.ScriptedSession{}
	_, err = Run(context.Background(), s, nb, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "python3", s.StartedFor, "config override wins over the notebook")
}

func TestRun_StartFailure(t *testing.T) {
	s := &testutil.ScriptedSession{StartErr: fmt.Errorf("no such kernel")}

	_, err := Run(context.Background(), s, &notebook.Notebook{}, testConfig(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such kernel")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	nb := &notebook.Notebook{Cells: []notebook.Cell{plainCell(0, "1")}}
	s := &testutil.ScriptedSession{Scripts: []testutil.CellScript{resultScript("1")}}

	res, err := Run(ctx, s, nb, testConfig(), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Cells)
}
