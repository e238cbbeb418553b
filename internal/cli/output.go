package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes.
const (
	ExitSuccess      = 0 // clean run
	ExitFailure      = 1 // validation failed (mismatches, timeouts, inconsistent notebooks)
	ExitCommandError = 2 // command error (bad paths, unreadable files, bad flags)
)

// ExitError is how a command tells Execute which process exit code a
// failure deserves.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError builds an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an underlying
// error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error to a process exit code. Anything that is
// not an ExitError counts as a validation failure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ExitFailure
	}
	return exitErr.Code
}

// OutputFormatter handles JSON vs text output for commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response is the JSON envelope every command emits in JSON mode.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is the error payload of a Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether the formatter is in JSON mode.
func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Success emits a success payload. Text rendering is left to the
// caller; render is invoked only in text mode.
func (f *OutputFormatter) Success(data any, render func(io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	render(f.Writer)
	return nil
}

// Error emits an error in the configured format. Details ride along in
// the JSON envelope; in text mode they print only under verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		resp := Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		}
		return json.NewEncoder(f.Writer).Encode(resp)
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if details != nil && f.Verbose {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on, to
// ErrWriter so JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	if f.ErrWriter != nil {
		fmt.Fprintf(f.ErrWriter, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// Error codes used in JSON responses.
const (
	ErrCodeNotebook   = "E_NOTEBOOK"   // notebook unreadable or malformed
	ErrCodeConfig     = "E_CONFIG"     // settings file problems
	ErrCodeHistory    = "E_HISTORY"    // history database problems
	ErrCodeValidation = "E_VALIDATION" // cells failed validation
)
