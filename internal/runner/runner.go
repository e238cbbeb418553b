// Package runner validates a whole notebook: it starts a kernel
// session, runs every code cell through the driver in document order,
// and folds the outcomes into a run result.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ouseful-PR/nbval/internal/compare"
	"github.com/ouseful-PR/nbval/internal/config"
	"github.com/ouseful-PR/nbval/internal/driver"
	"github.com/ouseful-PR/nbval/internal/kernel"
	"github.com/ouseful-PR/nbval/internal/notebook"
	"github.com/ouseful-PR/nbval/internal/output"
)

// Status is a cell's validation outcome.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
	// StatusExpectedFail marks a failure after an earlier cell timed
	// out: the session state is suspect, so the failure was anticipated.
	StatusExpectedFail Status = "expected-fail"
	// StatusUnexpectedPass marks a pass under the same suspicion.
	StatusUnexpectedPass Status = "unexpected-pass"
)

// CellResult is one cell's outcome.
type CellResult struct {
	Index    int
	Status   Status
	Duration time.Duration
	// Err carries the failure detail for fail and expected-fail cells.
	Err *driver.CellError
	// Outputs are the captured fresh outputs, kept for reporting.
	Outputs []output.Output
}

// RunResult is one notebook validation run.
type RunResult struct {
	NotebookPath string
	KernelName   string
	Started      time.Time
	Duration     time.Duration
	Cells        []CellResult
}

// Failed reports whether any cell genuinely failed.
func (r RunResult) Failed() bool {
	for _, c := range r.Cells {
		if c.Status == StatusFail {
			return true
		}
	}
	return false
}

// Counts tallies outcomes by status.
func (r RunResult) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, c := range r.Cells {
		counts[c.Status]++
	}
	return counts
}

// defaultKernel is used when neither the config nor the notebook names
// a kernelspec.
const defaultKernel = "python3"

// Run validates nb against a fresh session. The session is always
// stopped before returning, whatever path got there.
func Run(ctx context.Context, session kernel.Session, nb *notebook.Notebook, cfg config.Config, log *slog.Logger) (RunResult, error) {
	if log == nil {
		log = slog.Default()
	}

	kernelName := cfg.KernelName
	if kernelName == "" {
		kernelName = nb.KernelName
	}
	if kernelName == "" {
		kernelName = defaultKernel
	}

	result := RunResult{
		NotebookPath: nb.Path,
		KernelName:   kernelName,
		Started:      time.Now(),
	}

	sanitizer, err := cfg.BuildSanitizer()
	if err != nil {
		return result, err
	}
	opts := compare.Options{
		SkipKeys:   cfg.SkipKeySet(),
		Sanitizer:  sanitizer,
		RicherDiff: cfg.RicherDiff,
	}

	cwd := filepath.Dir(nb.Path)
	if err := session.Start(ctx, kernelName, cwd, cfg.StartupTimeoutDuration()); err != nil {
		return result, fmt.Errorf("starting kernel %q: %w", kernelName, err)
	}
	defer func() {
		if serr := session.Stop(); serr != nil {
			log.Warn("kernel stop failed", "error", serr)
		}
	}()

	d := driver.New(session, cfg.CellTimeoutDuration(), cfg.OutputTimeoutDuration(), log)
	log.Info("validating notebook", "path", nb.Path, "kernel", kernelName, "cells", len(nb.Cells))

	for _, cell := range nb.Cells {
		if ctx.Err() != nil {
			result.Duration = time.Since(result.Started)
			return result, ctx.Err()
		}
		result.Cells = append(result.Cells, runCell(d, cell, opts, cfg.CheckAll, log))
	}

	result.Duration = time.Since(result.Started)
	return result, nil
}

func runCell(d *driver.Driver, cell notebook.Cell, opts compare.Options, checkAll bool, log *slog.Logger) CellResult {
	res := CellResult{Index: cell.Index}
	if cell.Options.Skip {
		res.Status = StatusSkip
		log.Debug("cell skipped", "cell", cell.Index)
		return res
	}

	// A timeout earlier in the session poisons everything after it.
	anticipated := d.TimedOut()

	start := time.Now()
	outs, err := d.RunCell(cell, opts, checkAll)
	res.Duration = time.Since(start)
	res.Outputs = outs

	switch {
	case err == nil && anticipated:
		res.Status = StatusUnexpectedPass
		log.Warn("cell passed after an earlier timeout", "cell", cell.Index)
	case err == nil:
		res.Status = StatusPass
	default:
		ce, ok := driver.AsCellError(err)
		if !ok {
			ce = &driver.CellError{
				CellNum: cell.Index,
				Code:    driver.CodeTransport,
				Message: err.Error(),
				Source:  cell.Source,
			}
		}
		res.Err = ce
		if anticipated {
			res.Status = StatusExpectedFail
			log.Info("anticipated failure after earlier timeout", "cell", cell.Index, "code", ce.Code)
		} else {
			res.Status = StatusFail
			log.Error("cell failed", "cell", cell.Index, "code", ce.Code, "message", ce.Message)
		}
	}
	return res
}
