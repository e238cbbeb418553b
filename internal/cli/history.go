package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ouseful-PR/nbval/internal/results"
	"github.com/ouseful-PR/nbval/internal/runner"
)

// NewHistoryCommand creates the history command over a run-history
// database written by verify --record (or by an embedding program).
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath   string
		notebook string
		runID    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recorded validation runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, dbPath, notebook, runID, limit, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "nbval-history.db", "history database path")
	cmd.Flags().StringVar(&notebook, "notebook", "", "only runs of this notebook")
	cmd.Flags().StringVar(&runID, "run", "", "show the cell outcomes of one run")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func runHistory(opts *RootOptions, dbPath, notebook, runID string, limit int, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := results.Open(dbPath)
	if err != nil {
		formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening history database", err)
	}
	defer store.Close()

	if runID != "" {
		cells, err := store.Cells(cmd.Context(), runID)
		if err != nil {
			formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitCommandError, "reading run", err)
		}
		return formatter.Success(cells, func(w io.Writer) {
			for _, c := range cells {
				fmt.Fprintf(w, "cell %d: %s", c.Index, c.Status)
				if c.Status == runner.StatusFail || c.Status == runner.StatusExpectedFail {
					fmt.Fprintf(w, " [%s] %s", c.FailureCode, c.Message)
				}
				fmt.Fprintln(w)
			}
		})
	}

	runs, err := store.History(cmd.Context(), notebook, limit)
	if err != nil {
		formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading history", err)
	}
	return formatter.Success(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "no recorded runs")
			return
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %s  pass=%d fail=%d skip=%d  (%s)\n",
				r.ID, r.Started.Format(time.RFC3339), r.NotebookPath,
				r.Passed, r.Failed, r.Skipped, r.Duration)
		}
	})
}
