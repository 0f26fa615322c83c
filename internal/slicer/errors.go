package slicer

import (
	"errors"
	"fmt"
)

// ErrEmptyWaveform is returned for a zero-sample input when the Slicer uses
// EmptyPolicyError (the default).
var ErrEmptyWaveform = errors.New("slicer: waveform has no samples")

// ConfigError reports a Config that failed validation. It is surfaced before
// any frame processing begins and is never silently defaulted.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("slicer: invalid config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InvariantError reports a violated output invariant (segment ordering or
// coverage). It indicates a logic defect and is always fatal to the task
// that produced it; a partially correct segment list is worse than a visible
// failure, since segments are pasted directly into output audio.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "slicer: internal invariant violated: " + e.Detail
}
