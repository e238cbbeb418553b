package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ouseful-PR/nbval/internal/notebook"
)

// InspectCell is one cell's summary in an inspect report.
type InspectCell struct {
	Cell           int      `json:"cell"`
	ExecutionCount int      `json:"execution_count"`
	Tags           []string `json:"tags,omitempty"`
	Skip           bool     `json:"skip"`
	CheckException bool     `json:"check_exception"`
	// Check is "default", "on" or "off" depending on the markers.
	Check   string   `json:"check"`
	Outputs []string `json:"outputs,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// InspectResult is the inspect command's payload.
type InspectResult struct {
	Notebook   string        `json:"notebook"`
	KernelName string        `json:"kernel_name,omitempty"`
	Cells      []InspectCell `json:"cells"`
}

// NewInspectCommand creates the inspect command, a read-only view of
// how each cell would be treated during validation.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:           "inspect <notebook.ipynb>",
		Short:         "Show how a notebook's cells would be validated",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], showSource, cmd)
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "include cell source in the report")
	return cmd
}

func runInspect(opts *RootOptions, path string, showSource bool, cmd *cobra.Command) error {
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

	result := InspectResult{Notebook: nb.Path, KernelName: nb.KernelName}
	for _, cell := range nb.Cells {
		ic := InspectCell{
			Cell:           cell.Index,
			ExecutionCount: cell.ExecutionCount,
			Tags:           cell.Tags,
			Skip:           cell.Options.Skip,
			CheckException: cell.Options.CheckException,
			Check:          checkLabel(cell.Options),
		}
		for _, out := range cell.Outputs {
			ic.Outputs = append(ic.Outputs, string(out.Type))
		}
		if showSource {
			ic.Source = cell.Source
		}
		result.Cells = append(result.Cells, ic)
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s (kernel %s, %d code cells)\n", nb.Path, orDash(nb.KernelName), len(nb.Cells))
		for _, ic := range result.Cells {
			flags := []string{"check=" + ic.Check}
			if ic.Skip {
				flags = append(flags, "skip")
			}
			if ic.CheckException {
				flags = append(flags, "raises")
			}
			fmt.Fprintf(w, "  cell %d: %s outputs=[%s]",
				ic.Cell, strings.Join(flags, " "), strings.Join(ic.Outputs, " "))
			if len(ic.Tags) > 0 {
				fmt.Fprintf(w, " tags=[%s]", strings.Join(ic.Tags, " "))
			}
			fmt.Fprintln(w)
		}
	})
}

func checkLabel(o notebook.Options) string {
	if !o.CheckExplicit() {
		return "default"
	}
	if o.Check(false) {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
