package slicer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framesFromDB(levels ...float64) []EnergyFrame {
	frames := make([]EnergyFrame, len(levels))
	for i, db := range levels {
		frames[i] = EnergyFrame{Index: i, RMSdB: db}
	}
	return frames
}

func TestEstimateThreshold_FixedMode(t *testing.T) {
	frames := framesFromDB(-80, -30, -25, -70, -20, -60, -15, -90)
	cfg := Config{ThresholdDB: -40}
	assert.Equal(t, -40.0, EstimateThreshold(frames, cfg))
}

func TestEstimateThreshold_DynamicMode(t *testing.T) {
	// Ten frames: the 10th-percentile value is the second-quietest (-85),
	// so the effective threshold is noise floor + offset.
	frames := framesFromDB(-90, -85, -80, -75, -70, -40, -35, -30, -25, -20)
	cfg := Config{ThresholdDB: -40, DynamicThreshold: true, DynamicOffsetDB: 6}

	got := EstimateThreshold(frames, cfg)
	assert.InDelta(t, -85+6, got, 1e-9)
}

func TestEstimateThreshold_DegenerateDistributionFallsBack(t *testing.T) {
	// Constant level: the percentile is undefined in practice.
	frames := framesFromDB(-50, -50, -50, -50, -50, -50, -50, -50, -50, -50)
	cfg := Config{ThresholdDB: -40, DynamicThreshold: true, DynamicOffsetDB: 6}
	assert.Equal(t, -40.0, EstimateThreshold(frames, cfg))
}

func TestEstimateThreshold_TooFewFramesFallsBack(t *testing.T) {
	frames := framesFromDB(-90, -30, -20)
	cfg := Config{ThresholdDB: -40, DynamicThreshold: true, DynamicOffsetDB: 6}
	assert.Equal(t, -40.0, EstimateThreshold(frames, cfg))
}

func TestEstimateThreshold_OffsetMonotonicity(t *testing.T) {
	// Raising the dynamic offset raises the threshold and can only grow
	// the set of frames classified as silence.
	frames := framesFromDB(
		-95, -88, -82, -76, -71, -66, -58, -52,
		-47, -41, -36, -31, -27, -22, -18, -12,
	)

	prevSilent := -1
	for offset := 0.0; offset <= 30; offset += 3 {
		cfg := Config{ThresholdDB: -40, DynamicThreshold: true, DynamicOffsetDB: offset}
		thr := EstimateThreshold(frames, cfg)
		silent := 0
		for _, s := range Classify(frames, thr) {
			if s {
				silent++
			}
		}
		require.GreaterOrEqual(t, silent, prevSilent, "offset %v", offset)
		prevSilent = silent
	}
}
