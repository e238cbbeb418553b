// Package kernel defines the execution-session boundary: the narrow
// interface a kernel transport must provide for notebooks to be
// validated against it. The package deliberately contains no wire
// protocol; implementations adapt a real message channel (or a scripted
// stand-in) to these calls.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventKind discriminates the events a session can deliver while a cell
// executes.
type EventKind string

const (
	// EventStatus reports an execution-state change; the idle state
	// marks the end of a cell's output.
	EventStatus EventKind = "status"
	// EventExecuteInput echoes the submitted code back; ignored.
	EventExecuteInput EventKind = "execute_input"
	// EventExecuteReply acknowledges an execution request on the event
	// channel; ignored there (replies are awaited separately).
	EventExecuteReply EventKind = "execute_reply"
	// EventStream carries incremental stdout/stderr text.
	EventStream EventKind = "stream"
	// EventDisplayData carries a rich display payload.
	EventDisplayData EventKind = "display_data"
	// EventExecuteResult carries the value of the last expression.
	EventExecuteResult EventKind = "execute_result"
	// EventError reports a raised exception.
	EventError EventKind = "error"
	// EventCommOpen and EventCommMsg are widget side-channel traffic;
	// ignored.
	EventCommOpen EventKind = "comm_open"
	EventCommMsg  EventKind = "comm_msg"
)

// Execution states carried by status events.
const (
	StateBusy = "busy"
	StateIdle = "idle"
)

// RawEvent is one event received from a session, decoded just far
// enough for the driver to route it.
type RawEvent struct {
	Kind EventKind
	// ParentID identifies the execution request this event belongs to.
	ParentID string
	// ExecutionState is set on status events.
	ExecutionState string

	// Stream payload.
	Name string
	Text string

	// Display/result payload.
	Data           map[string]any
	Metadata       map[string]any
	ExecutionCount int

	// Error payload.
	Ename     string
	Evalue    string
	Traceback []string
}

// Session is a live kernel connection. Implementations are used from a
// single goroutine; calls need not be safe for concurrent use.
type Session interface {
	// Start launches the kernel and waits until it answers, up to
	// startupTimeout.
	Start(ctx context.Context, kernelName, cwd string, startupTimeout time.Duration) error
	// IsAlive reports whether the kernel process is still running.
	IsAlive() bool
	// Execute submits source for execution and returns the request id
	// events and the reply will carry as their parent.
	Execute(source string) (requestID string, err error)
	// AwaitReply blocks until the execution reply for requestID arrives.
	// A *TimeoutError with reply scope is returned when timeout elapses
	// first.
	AwaitReply(requestID string, timeout time.Duration) error
	// ReceiveEvent blocks for the next event on the output channel. A
	// *TimeoutError with event scope is returned when timeout elapses
	// first.
	ReceiveEvent(timeout time.Duration) (RawEvent, error)
	// Interrupt asks the kernel to abort the running cell.
	Interrupt() error
	// Stop shuts the kernel down. It is safe to call more than once.
	Stop() error
}

// Timeout scopes for TimeoutError.
const (
	ScopeReply = "reply"
	ScopeEvent = "event"
)

// TimeoutError reports that a session call gave up waiting.
type TimeoutError struct {
	// Scope is ScopeReply or ScopeEvent.
	Scope   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("kernel %s timeout after %s", e.Scope, e.Timeout)
}

// IsReplyTimeout reports whether err is a reply-scope timeout.
func IsReplyTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) && te.Scope == ScopeReply
}

// IsEventTimeout reports whether err is an event-scope timeout.
func IsEventTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) && te.Scope == ScopeEvent
}
