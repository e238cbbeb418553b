// Package notebook models a notebook as a sequence of code cells with
// stored reference outputs, and resolves the per-cell validation options
// encoded in comment markers and metadata tags.
package notebook

import (
	"github.com/ouseful-PR/nbval/internal/output"
)

// Options are the resolved validation controls for one cell.
type Options struct {
	// Skip excludes the cell from execution entirely.
	Skip bool
	// CheckException marks an exception as the expected outcome.
	CheckException bool

	check    bool
	checkSet bool
}

// Check reports whether the cell's outputs should be compared, given
// the run-wide default. An explicit marker on the cell wins.
func (o Options) Check(checkAll bool) bool {
	if o.checkSet {
		return o.check
	}
	return checkAll
}

// SetCheck records an explicit per-cell comparison choice.
func (o *Options) SetCheck(v bool) {
	o.check = v
	o.checkSet = true
}

// CheckExplicit reports whether the cell carries an explicit comparison
// choice rather than inheriting the run default.
func (o Options) CheckExplicit() bool {
	return o.checkSet
}

// Cell is one code cell.
type Cell struct {
	// Index is the cell's position among the notebook's code cells,
	// counted from zero.
	Index int
	// Source is the cell's code after timing-magic stripping.
	Source string
	// Tags are the raw metadata tags, kept for classifier selection.
	Tags []string
	// ExecutionCount is the stored count, zero when the cell was never
	// run before saving.
	ExecutionCount int
	// Outputs are the stored reference outputs.
	Outputs []output.Output
	// Options are the resolved validation controls.
	Options Options
}

// Notebook is a loaded notebook ready for validation.
type Notebook struct {
	// Path is where the notebook was loaded from, for reporting.
	Path string
	// KernelName is the kernelspec name recorded in the notebook
	// metadata, empty when absent.
	KernelName string
	// Cells are the code cells in document order.
	Cells []Cell
}
