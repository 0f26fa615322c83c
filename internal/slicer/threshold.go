package slicer

import "sort"

const (
	// noiseFloorPercentile selects the quietest consistent background level
	// from the energy distribution, rather than absolute digital silence.
	noiseFloorPercentile = 0.10

	// minFramesForDynamic is the smallest distribution for which a
	// percentile estimate is meaningful.
	minFramesForDynamic = 8

	// degenerateSpreadDB: below this spread the track is effectively
	// constant-level and the percentile is undefined in practice.
	degenerateSpreadDB = 1e-6
)

// EstimateThreshold derives the effective silence threshold in dBFS.
//
// In fixed mode it is cfg.ThresholdDB. In dynamic mode the noise floor is
// estimated as a low percentile of the sorted RMS distribution and the
// configured offset is added on top; a larger offset yields a higher
// threshold that classifies more frames as silence. Degenerate
// distributions (too few frames, or a near-constant level) fall back to the
// fixed threshold. The estimate is derived per invocation from the frames
// passed in, never cached or shared across files.
func EstimateThreshold(frames []EnergyFrame, cfg Config) float64 {
	if !cfg.DynamicThreshold {
		return cfg.ThresholdDB
	}
	if len(frames) < minFramesForDynamic {
		return cfg.ThresholdDB
	}

	vals := make([]float64, len(frames))
	for i, f := range frames {
		vals[i] = f.RMSdB
	}
	sort.Float64s(vals)

	if vals[len(vals)-1]-vals[0] < degenerateSpreadDB {
		return cfg.ThresholdDB
	}

	idx := int(float64(len(vals)) * noiseFloorPercentile)
	if idx >= len(vals) {
		idx = len(vals) - 1
	}
	return vals[idx] + cfg.DynamicOffsetDB
}
