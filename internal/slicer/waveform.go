// Package slicer implements silence-based audio segmentation.
// Given a decoded waveform and a parameter set, it partitions the samples
// into an ordered list of non-overlapping segments using short-time energy
// analysis, adaptive noise-floor estimation, and optional voice-activity
// compensation. The pipeline is a pure function of its inputs: it performs
// no I/O and keeps no state between invocations.
package slicer

// Waveform holds a decoded audio signal reduced to a single analysis channel.
// The slicer never mutates it; callers may share one Waveform across
// concurrent pipeline invocations.
type Waveform struct {
	// Samples are normalized amplitudes in [-1, 1].
	Samples []float64
	// SampleRate is the number of samples per second.
	SampleRate int
}

// TotalSamples returns the number of samples in the waveform.
func (w *Waveform) TotalSamples() int {
	if w == nil {
		return 0
	}
	return len(w.Samples)
}

// DurationMs returns the waveform duration in milliseconds.
func (w *Waveform) DurationMs() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) * 1000 / float64(w.SampleRate)
}
