// Package driver runs notebook cells against a kernel session and
// turns the raw event traffic into captured outputs and typed failures.
//
// All cells of a notebook run in one session without restarts, the way
// notebooks are written to be used. A cell timeout therefore poisons
// the rest of the run: once a cell has timed out, later failures are
// anticipated rather than genuine, and the runner downgrades them.
package driver

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ouseful-PR/nbval/internal/compare"
	"github.com/ouseful-PR/nbval/internal/kernel"
	"github.com/ouseful-PR/nbval/internal/notebook"
	"github.com/ouseful-PR/nbval/internal/output"
)

// Driver executes cells on one session.
type Driver struct {
	session       kernel.Session
	cellTimeout   time.Duration
	outputTimeout time.Duration
	log           *slog.Logger

	// timedOut is sticky for the life of the session: a timed-out cell
	// leaves the kernel in an unknown state.
	timedOut bool
}

// New wires a driver to a started session.
func New(session kernel.Session, cellTimeout, outputTimeout time.Duration, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		session:       session,
		cellTimeout:   cellTimeout,
		outputTimeout: outputTimeout,
		log:           log,
	}
}

// TimedOut reports whether any cell has timed out on this session.
func (d *Driver) TimedOut() bool { return d.timedOut }

func (d *Driver) fail(cell notebook.Cell, code FailureCode, message string) *CellError {
	return &CellError{
		CellNum: cell.Index,
		Code:    code,
		Message: message,
		Source:  cell.Source,
	}
}

// ExecuteCell submits one cell and captures its outputs, already
// stream-coalesced. The returned outputs are valid even when err is
// non-nil, holding whatever arrived before the failure.
func (d *Driver) ExecuteCell(cell notebook.Cell) ([]output.Output, error) {
	if !d.session.IsAlive() {
		return nil, d.fail(cell, CodeSessionDead, "Kernel dead on cell start")
	}

	requestID, err := d.session.Execute(cell.Source)
	if err != nil {
		ce := d.fail(cell, CodeTransport, fmt.Sprintf("submitting cell for execution: %v", err))
		ce.cause = err
		return nil, ce
	}

	timedOutThisRun := false
	if err := d.session.AwaitReply(requestID, d.cellTimeout); err != nil {
		if !kernel.IsReplyTimeout(err) {
			ce := d.fail(cell, CodeTransport, fmt.Sprintf("waiting for execution reply: %v", err))
			ce.cause = err
			return nil, ce
		}
		// Interrupting gives the kernel a chance to surface a
		// KeyboardInterrupt traceback through the normal event flow.
		if ierr := d.session.Interrupt(); ierr != nil {
			d.log.Warn("kernel interrupt failed", "cell", cell.Index, "error", ierr)
		}
		d.timedOut = true
		timedOutThisRun = true
		d.log.Warn("cell timed out, interrupted kernel",
			"cell", cell.Index, "timeout", d.cellTimeout)
	}

	var outs []output.Output
	for {
		ev, err := d.session.ReceiveEvent(d.outputTimeout)
		if err != nil {
			if !kernel.IsEventTimeout(err) {
				ce := d.fail(cell, CodeTransport, fmt.Sprintf("receiving kernel event: %v", err))
				ce.cause = err
				return outs, ce
			}
			// No more events are coming; the kernel is wedged.
			if serr := d.session.Stop(); serr != nil {
				d.log.Warn("kernel stop failed", "error", serr)
			}
			if timedOutThisRun {
				return outs, d.fail(cell, CodeReplyTimeout, fmt.Sprintf(
					"Timeout of %g seconds exceeded while executing cell."+
						" Failed to interrupt kernel in %g seconds, so failing without traceback.",
					d.cellTimeout.Seconds(), d.outputTimeout.Seconds()))
			}
			d.timedOut = true
			return outs, d.fail(cell, CodeCellTimeout, fmt.Sprintf(
				"Timeout of %g seconds exceeded waiting for output.",
				d.outputTimeout.Seconds()))
		}

		if ev.ParentID != requestID {
			continue
		}

		switch ev.Kind {
		case kernel.EventStatus:
			if ev.ExecutionState == kernel.StateIdle {
				return output.Coalesce(outs), nil
			}
		case kernel.EventExecuteInput, kernel.EventExecuteReply,
			kernel.EventCommOpen, kernel.EventCommMsg:
			// Bookkeeping traffic, nothing to capture.
		case kernel.EventStream:
			outs = append(outs, output.Stream(ev.Name, ev.Text))
		case kernel.EventDisplayData:
			outs = append(outs, output.DisplayData(ev.Data, ev.Metadata))
		case kernel.EventExecuteResult:
			outs = append(outs, output.ExecuteResult(ev.Data, ev.Metadata, ev.ExecutionCount))
		case kernel.EventError:
			outs = append(outs, output.Error(ev.Ename, ev.Evalue, ev.Traceback))
			if cell.Options.CheckException {
				// Expected: the error output is the reference outcome.
				continue
			}
			// Flush remaining events before failing so the session is
			// usable for the next cell.
			if derr := d.drainToIdle(requestID); derr != nil {
				if serr := d.session.Stop(); serr != nil {
					d.log.Warn("kernel stop failed", "error", serr)
				}
				return outs, d.fail(cell, CodeCellTimeout, "Timed out waiting for idle kernel!")
			}
			ce := d.fail(cell, CodeUnexpectedError, "Cell execution caused an exception")
			if ev.Ename == "KeyboardInterrupt" && d.timedOut {
				ce.Code = CodeCellTimeout
				ce.Message = fmt.Sprintf("Timeout of %g seconds exceeded executing cell",
					d.cellTimeout.Seconds())
			}
			ce.Traceback = "\n" + strings.Join(ev.Traceback, "\n")
			return outs, ce
		default:
			d.log.Warn("unhandled kernel event", "kind", ev.Kind)
		}
	}
}

// drainToIdle consumes events for the request until the idle status
// arrives.
func (d *Driver) drainToIdle(requestID string) error {
	for {
		ev, err := d.session.ReceiveEvent(d.outputTimeout)
		if err != nil {
			return err
		}
		if ev.ParentID == requestID && ev.Kind == kernel.EventStatus &&
			ev.ExecutionState == kernel.StateIdle {
			return nil
		}
	}
}

// RunCell executes a cell and, when the cell asks for it, compares the
// captured outputs against the notebook's reference outputs.
func (d *Driver) RunCell(cell notebook.Cell, opts compare.Options, checkAll bool) ([]output.Output, error) {
	outs, err := d.ExecuteCell(cell)
	if err != nil {
		return outs, err
	}

	// A never-executed reference cell has no outputs to compare; if it
	// has some anyway the notebook file is internally inconsistent.
	unrun := cell.ExecutionCount == 0
	if unrun && len(cell.Outputs) > 0 {
		return outs, d.fail(cell, CodeInconsistentReference, "Unrun reference cell has outputs")
	}

	if !unrun && cell.Options.Check(checkAll) {
		opts.Tags = cell.Tags
		if res := compare.Outputs(outs, cell.Outputs, opts); !res.Equal {
			ce := d.fail(cell, CodeComparisonMismatch, "Cell outputs differ")
			ce.Trace = res.Trace
			return outs, ce
		}
	}
	return outs, nil
}
