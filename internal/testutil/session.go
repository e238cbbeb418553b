// Package testutil provides a scripted kernel session for exercising
// the driver and runner without a live kernel.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ouseful-PR/nbval/internal/kernel"
)

// CellScript describes how the session behaves for one Execute call.
type CellScript struct {
	// ReplyTimesOut makes AwaitReply report a reply timeout.
	ReplyTimesOut bool
	// Events are delivered in order by ReceiveEvent. Events with an
	// empty ParentID are stamped with the request id; a preset ParentID
	// is kept, modelling unrelated traffic.
	Events []kernel.RawEvent
	// StallAfterEvents makes ReceiveEvent report an event timeout once
	// Events are exhausted, instead of the implicit idle status.
	StallAfterEvents bool
	// InterruptEvents are queued when Interrupt is called.
	InterruptEvents []kernel.RawEvent
}

// ScriptedSession is a kernel.Session that replays canned scripts.
type ScriptedSession struct {
	Scripts []CellScript
	// StartErr, when set, is returned from Start.
	StartErr error

	// Observed calls, for assertions.
	Sources    []string
	Interrupts int
	StopCalls  int
	StartedFor string

	alive     bool
	current   int
	requestID string
	queue     []kernel.RawEvent
	stall     bool
	interrupt []kernel.RawEvent
}

var _ kernel.Session = (*ScriptedSession)(nil)

func (s *ScriptedSession) Start(_ context.Context, kernelName, _ string, _ time.Duration) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.StartedFor = kernelName
	s.alive = true
	return nil
}

func (s *ScriptedSession) IsAlive() bool { return s.alive }

func (s *ScriptedSession) Execute(source string) (string, error) {
	if !s.alive {
		return "", fmt.Errorf("session not started")
	}
	if s.current >= len(s.Scripts) {
		return "", fmt.Errorf("no script for execution %d", s.current)
	}
	script := s.Scripts[s.current]
	s.current++
	s.Sources = append(s.Sources, source)

	s.requestID = uuid.NewString()
	s.queue = stamp(script.Events, s.requestID)
	s.stall = script.StallAfterEvents
	s.interrupt = script.InterruptEvents
	return s.requestID, nil
}

func (s *ScriptedSession) AwaitReply(requestID string, timeout time.Duration) error {
	if requestID != s.requestID {
		return fmt.Errorf("await for unknown request %s", requestID)
	}
	if s.Scripts[s.current-1].ReplyTimesOut {
		return &kernel.TimeoutError{Scope: kernel.ScopeReply, Timeout: timeout}
	}
	return nil
}

func (s *ScriptedSession) ReceiveEvent(timeout time.Duration) (kernel.RawEvent, error) {
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		return ev, nil
	}
	if s.stall {
		return kernel.RawEvent{}, &kernel.TimeoutError{Scope: kernel.ScopeEvent, Timeout: timeout}
	}
	// Scripts end with an implicit idle status unless they stall.
	return kernel.RawEvent{
		Kind:           kernel.EventStatus,
		ParentID:       s.requestID,
		ExecutionState: kernel.StateIdle,
	}, nil
}

func (s *ScriptedSession) Interrupt() error {
	s.Interrupts++
	s.queue = append(s.queue, stamp(s.interrupt, s.requestID)...)
	// Interrupt events replace the stall: the kernel woke up.
	if len(s.interrupt) > 0 {
		s.stall = false
	}
	return nil
}

func (s *ScriptedSession) Stop() error {
	s.StopCalls++
	s.alive = false
	return nil
}

func stamp(events []kernel.RawEvent, requestID string) []kernel.RawEvent {
	out := make([]kernel.RawEvent, len(events))
	for i, ev := range events {
		if ev.ParentID == "" {
			ev.ParentID = requestID
		}
		out[i] = ev
	}
	return out
}

// Event builders for scripts.

// StatusEvent builds a status event.
func StatusEvent(state string) kernel.RawEvent {
	return kernel.RawEvent{Kind: kernel.EventStatus, ExecutionState: state}
}

// IdleEvent builds the idle status that ends a cell's output.
func IdleEvent() kernel.RawEvent { return StatusEvent(kernel.StateIdle) }

// StreamEvent builds a stream event.
func StreamEvent(name, text string) kernel.RawEvent {
	return kernel.RawEvent{Kind: kernel.EventStream, Name: name, Text: text}
}

// ResultEvent builds an execute_result event.
func ResultEvent(data map[string]any, count int) kernel.RawEvent {
	return kernel.RawEvent{Kind: kernel.EventExecuteResult, Data: data, ExecutionCount: count}
}

// DisplayEvent builds a display_data event.
func DisplayEvent(data map[string]any) kernel.RawEvent {
	return kernel.RawEvent{Kind: kernel.EventDisplayData, Data: data}
}

// ErrorEvent builds an error event.
func ErrorEvent(ename, evalue string, traceback ...string) kernel.RawEvent {
	return kernel.RawEvent{Kind: kernel.EventError, Ename: ename, Evalue: evalue, Traceback: traceback}
}
