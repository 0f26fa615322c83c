// Package batch fans slicing tasks out across a bounded worker pool and
// collects per-task results in input order. A failure in one task never
// aborts its siblings: the failed task's Result carries the error and the
// rest of the batch proceeds.
package batch

import (
	"errors"
	"fmt"

	"github.com/slicekit/slicekit/internal/slicer"
)

// Mode selects how tasks are executed.
type Mode string

const (
	// ModeSerial runs tasks one after another on the calling goroutine.
	ModeSerial Mode = "serial"
	// ModeThreads runs tasks on a bounded pool of goroutines sharing
	// memory.
	ModeThreads Mode = "threads"
	// ModeProcesses runs each task in an isolated worker process,
	// exchanging gob-serialized tasks and results over stdin/stdout.
	ModeProcesses Mode = "processes"
)

// ErrUnknownMode is returned for an execution mode outside the documented
// set.
var ErrUnknownMode = errors.New("batch: unknown execution mode")

// ErrCancelled marks tasks that were not started because the batch was
// cancelled. Tasks already in progress run to completion; cancellation is
// only checked between tasks.
var ErrCancelled = errors.New("batch: cancelled before task started")

// ParseMode validates a mode string from configuration or a request.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSerial, ModeThreads, ModeProcesses:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Task is one unit of work: an already-decoded waveform plus the slicing
// parameters to apply. Tasks share no mutable state; the waveform and
// config are read-only for the duration of the run.
type Task struct {
	// ID is the caller-supplied identity, typically the source file path.
	ID string
	// Waveform is the decoded analysis channel.
	Waveform *slicer.Waveform
	// Config holds the slicing parameters for this task.
	Config slicer.Config
}

// Result is the outcome of one task: either a slice result or a typed
// failure, tagged with the originating task identity and input position.
type Result struct {
	ID    string
	Index int
	Slice *slicer.SliceResult
	Err   error
}

// Failed reports whether the task ended in a failure.
func (r Result) Failed() bool { return r.Err != nil }
