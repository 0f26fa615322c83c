package slicer

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config holds the externally tunable slicing parameters.
// A Config is immutable once handed to a Slicer; the same value can be
// reused across files and across concurrent batch tasks.
type Config struct {
	// ThresholdDB is the fixed silence threshold in dBFS. Frames whose RMS
	// energy falls below it are classified as silence.
	ThresholdDB float64 `json:"threshold_db"`

	// MinLengthMs is the minimum duration of an output segment. Shorter
	// segments are merged with a neighbor.
	MinLengthMs int `json:"min_length_ms" validate:"min=0"`

	// MinIntervalMs is the minimum duration of a silence region for it to
	// qualify as a split point. Must be at least HopSizeMs.
	MinIntervalMs int `json:"min_interval_ms" validate:"min=0"`

	// HopSizeMs is the duration of one non-overlapping analysis hop.
	HopSizeMs int `json:"hop_size_ms" validate:"min=1"`

	// MaxSilenceKeptMs bounds how much silence is retained on each side of
	// a cut. It may exceed MinIntervalMs: silence is trimmed, not required
	// to vanish.
	MaxSilenceKeptMs int `json:"max_silence_kept_ms" validate:"min=0"`

	// DynamicThreshold derives the effective threshold from the energy
	// distribution of the input instead of ThresholdDB.
	DynamicThreshold bool `json:"dynamic_threshold"`

	// DynamicOffsetDB is added to the estimated noise floor in dynamic
	// mode. A larger offset raises the threshold, classifying more frames
	// as silence.
	DynamicOffsetDB float64 `json:"dynamic_offset_db"`

	// VADEnabled turns on voice-activity compensation for frames that sit
	// just below the threshold.
	VADEnabled bool `json:"vad_enabled"`

	// VADSensitivity in [0, 1] scales the energy margin below the
	// threshold within which trailing speech is rescued from silence.
	VADSensitivity float64 `json:"vad_sensitivity" validate:"min=0,max=1"`

	// VADHangoverMs extends non-silence classification after a speech run
	// ends, so decay tails do not open a silence region early.
	VADHangoverMs int `json:"vad_hangover_ms" validate:"min=0"`
}

// DefaultConfig returns the slicing parameters used when a request does not
// override them.
func DefaultConfig() Config {
	return Config{
		ThresholdDB:      -40,
		MinLengthMs:      5000,
		MinIntervalMs:    300,
		HopSizeMs:        20,
		MaxSilenceKeptMs: 500,
		VADSensitivity:   0.5,
	}
}

var configValidator = validator.New()

// Validate rejects parameter combinations outside the documented ranges.
// It runs before any frame analysis; an invalid Config never reaches the
// pipeline.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return &ConfigError{Err: err}
	}
	if c.MinIntervalMs < c.HopSizeMs {
		return &ConfigError{Err: fmt.Errorf("min_interval_ms %d must be >= hop_size_ms %d", c.MinIntervalMs, c.HopSizeMs)}
	}
	return nil
}
