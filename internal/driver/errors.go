package driver

import (
	"errors"
	"fmt"

	"github.com/ouseful-PR/nbval/internal/report"
)

// FailureCode tags a cell failure for reporting and run history.
type FailureCode string

const (
	// CodeSessionDead: the kernel was gone before the cell could run.
	CodeSessionDead FailureCode = "SESSION_DEAD"
	// CodeCellTimeout: the cell exceeded its execution or output budget.
	CodeCellTimeout FailureCode = "CELL_TIMEOUT"
	// CodeReplyTimeout: the cell timed out and the interrupt never
	// produced a traceback either.
	CodeReplyTimeout FailureCode = "REPLY_TIMEOUT"
	// CodeUnexpectedError: the cell raised without being marked as
	// expecting an exception.
	CodeUnexpectedError FailureCode = "UNEXPECTED_ERROR"
	// CodeInconsistentReference: the stored notebook contradicts itself.
	CodeInconsistentReference FailureCode = "INCONSISTENT_REFERENCE"
	// CodeComparisonMismatch: outputs disagree with the reference.
	CodeComparisonMismatch FailureCode = "COMPARISON_MISMATCH"
	// CodeTransport: the session failed in a way that is not a cell
	// outcome (broken channel, send failure).
	CodeTransport FailureCode = "TRANSPORT"
)

// CellError is a cell-level validation failure.
type CellError struct {
	CellNum int
	Code    FailureCode
	Message string
	// Source is the cell's code, echoed into failure reports.
	Source string
	// Traceback is the kernel traceback when one was captured.
	Traceback string
	// Trace holds comparison diagnostics for mismatch failures.
	Trace report.Trace

	cause error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %d: %s", e.CellNum, e.Message)
}

func (e *CellError) Unwrap() error { return e.cause }

// AsCellError unwraps err to a CellError if one is in the chain.
func AsCellError(err error) (*CellError, bool) {
	var ce *CellError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// HasCode reports whether err is a CellError with the given code.
func HasCode(err error, code FailureCode) bool {
	ce, ok := AsCellError(err)
	return ok && ce.Code == code
}
