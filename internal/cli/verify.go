package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ouseful-PR/nbval/internal/compare"
	"github.com/ouseful-PR/nbval/internal/driver"
	"github.com/ouseful-PR/nbval/internal/notebook"
	"github.com/ouseful-PR/nbval/internal/report"
	"github.com/ouseful-PR/nbval/internal/results"
	"github.com/ouseful-PR/nbval/internal/runner"
)

// VerifyCellResult is one cell's outcome in a verify report.
type VerifyCellResult struct {
	Cell    int    `json:"cell"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// VerifyResult is the verify command's payload.
type VerifyResult struct {
	Notebook string             `json:"notebook"`
	Cells    []VerifyCellResult `json:"cells"`
	Passed   int                `json:"passed"`
	Failed   int                `json:"failed"`
	Skipped  int                `json:"skipped"`
	RunID    string             `json:"run_id,omitempty"`
}

// NewVerifyCommand creates the verify command: a kernel-free dry run
// that replays a notebook's stored outputs through the full comparison
// pipeline. It catches malformed notebooks, inconsistent unrun cells,
// and sanitizer rules that do not reach a fixed point, without
// executing any code.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "verify <notebook.ipynb>",
		Short: "Check a notebook's stored outputs without running a kernel",
		Long: `Verify replays each cell's reference outputs through the comparison
pipeline against themselves. Every marked cell must compare equal to its
own stored outputs; anything else means the notebook or the sanitizer
configuration cannot support a stable validation run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], recordPath, cmd)
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "record the outcome in this history database")
	return cmd
}

func runVerify(opts *RootOptions, path, recordPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.LoadConfig()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading settings", err)
	}
	nb, err := notebook.Load(path, cfg.MagicPolicy())
	if err != nil {
		formatter.Error(ErrCodeNotebook, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading notebook", err)
	}
	sanitizer, err := cfg.BuildSanitizer()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "building sanitizer", err)
	}
	cmpOpts := compare.Options{
		SkipKeys:   cfg.SkipKeySet(),
		Sanitizer:  sanitizer,
		RicherDiff: cfg.RicherDiff,
	}

	run := runner.RunResult{
		NotebookPath: nb.Path,
		KernelName:   nb.KernelName,
		Started:      time.Now(),
	}
	vr := VerifyResult{Notebook: nb.Path}
	for _, cell := range nb.Cells {
		cr, rr := verifyCell(cell, cmpOpts, cfg.CheckAll)
		formatter.VerboseLog("cell %d: %s", cr.Cell, cr.Status)
		vr.Cells = append(vr.Cells, cr)
		run.Cells = append(run.Cells, rr)
		switch runner.Status(cr.Status) {
		case runner.StatusSkip:
			vr.Skipped++
		case runner.StatusFail:
			vr.Failed++
		default:
			vr.Passed++
		}
	}
	run.Duration = time.Since(run.Started)

	if recordPath != "" {
		store, err := results.Open(recordPath)
		if err != nil {
			formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening history database", err)
		}
		defer store.Close()
		if vr.RunID, err = store.RecordRun(cmd.Context(), run); err != nil {
			formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitCommandError, "recording run", err)
		}
	}

	if vr.Failed > 0 {
		if formatter.JSON() {
			formatter.Error(ErrCodeValidation,
				fmt.Sprintf("%d of %d cells failed verification", vr.Failed, len(vr.Cells)), vr)
		} else {
			for _, c := range vr.Cells {
				if c.Status == string(runner.StatusFail) {
					fmt.Fprintf(formatter.Writer, "cell %d: [%s] %s\n", c.Cell, c.Code, c.Message)
				}
			}
			fmt.Fprintf(formatter.Writer, "%s: %d passed, %d failed, %d skipped\n",
				nb.Path, vr.Passed, vr.Failed, vr.Skipped)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d cells failed verification", vr.Failed))
	}
	return formatter.Success(vr, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %d passed, %d skipped\n", nb.Path, vr.Passed, vr.Skipped)
	})
}

func verifyCell(cell notebook.Cell, opts compare.Options, checkAll bool) (VerifyCellResult, runner.CellResult) {
	cr := VerifyCellResult{Cell: cell.Index, Status: string(runner.StatusPass)}
	rr := runner.CellResult{Index: cell.Index, Status: runner.StatusPass}

	fail := func(ce *driver.CellError) {
		cr.Status = string(runner.StatusFail)
		cr.Code = string(ce.Code)
		cr.Message = ce.Message
		rr.Status = runner.StatusFail
		rr.Err = ce
	}

	switch {
	case cell.Options.Skip:
		cr.Status = string(runner.StatusSkip)
		rr.Status = runner.StatusSkip
	case cell.ExecutionCount == 0 && len(cell.Outputs) > 0:
		fail(&driver.CellError{
			CellNum: cell.Index,
			Code:    driver.CodeInconsistentReference,
			Message: "Unrun reference cell has outputs",
			Source:  cell.Source,
		})
	case cell.ExecutionCount == 0 || !cell.Options.Check(checkAll):
		// Nothing to compare.
	default:
		opts.Tags = cell.Tags
		if res := compare.Outputs(cell.Outputs, cell.Outputs, opts); !res.Equal {
			ce := &driver.CellError{
				CellNum: cell.Index,
				Code:    driver.CodeComparisonMismatch,
				Message: "Stored outputs do not verify against themselves",
				Source:  cell.Source,
				Trace:   res.Trace,
			}
			fail(ce)
			cr.Message = report.Render(res.Trace, false)
		}
	}
	return cr, rr
}
