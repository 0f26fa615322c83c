package slicer

import "math"

// EnergyFrame is one short-time energy measurement.
type EnergyFrame struct {
	// Index is the ordinal hop number.
	Index int
	// RMSdB is the root-mean-square amplitude of the hop in dBFS,
	// floor-clamped to MinRMSdB for fully silent hops.
	RMSdB float64
}

const (
	// MinRMSdB is the floor applied to energy measurements so that digital
	// silence never produces a non-finite decibel value.
	MinRMSdB = -120.0

	rmsEpsilon = 1e-10
)

// AnalyzeEnergy partitions the waveform into non-overlapping hops of
// hopSizeMs duration (the last hop may be shorter) and computes the RMS
// energy of each hop in dBFS. The returned sequence covers the entire
// waveform in order, one frame per hop, with no gaps.
func AnalyzeEnergy(w *Waveform, hopSizeMs int) []EnergyFrame {
	total := w.TotalSamples()
	if total == 0 {
		return nil
	}

	hop := hopSamples(w.SampleRate, hopSizeMs)
	frames := make([]EnergyFrame, 0, (total+hop-1)/hop)
	for start, idx := 0, 0; start < total; start, idx = start+hop, idx+1 {
		end := start + hop
		if end > total {
			end = total
		}
		var sum float64
		for _, s := range w.Samples[start:end] {
			sum += s * s
		}
		rms := math.Sqrt(sum / float64(end-start))
		frames = append(frames, EnergyFrame{Index: idx, RMSdB: rmsToDB(rms)})
	}
	return frames
}

// Classify maps each energy frame to a silence decision: true when the
// frame's RMS energy is below the effective threshold.
func Classify(frames []EnergyFrame, thresholdDB float64) []bool {
	silence := make([]bool, len(frames))
	for i, f := range frames {
		silence[i] = f.RMSdB < thresholdDB
	}
	return silence
}

func rmsToDB(rms float64) float64 {
	if rms < rmsEpsilon {
		return MinRMSdB
	}
	db := 20 * math.Log10(rms)
	if db < MinRMSdB {
		return MinRMSdB
	}
	return db
}

// hopSamples converts a hop duration to a sample count, never below one
// sample so that low sample rates cannot stall the frame loop.
func hopSamples(sampleRate, hopSizeMs int) int {
	n := sampleRate * hopSizeMs / 1000
	if n < 1 {
		n = 1
	}
	return n
}
