package slicer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnergy_CoversWaveformWithoutGaps(t *testing.T) {
	// 1050 samples at 1000 Hz with 100 ms hops: 10 full hops plus one
	// 50-sample partial hop at the end.
	w := &Waveform{Samples: make([]float64, 1050), SampleRate: 1000}
	frames := AnalyzeEnergy(w, 100)

	require.Len(t, frames, 11)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
	}
}

func TestAnalyzeEnergy_SilenceClampedToFloor(t *testing.T) {
	w := &Waveform{Samples: make([]float64, 800), SampleRate: 8000}
	frames := AnalyzeEnergy(w, 10)

	require.NotEmpty(t, frames)
	for _, f := range frames {
		assert.Equal(t, MinRMSdB, f.RMSdB)
		assert.False(t, math.IsInf(f.RMSdB, 0))
	}
}

func TestAnalyzeEnergy_FullScaleIsZeroDB(t *testing.T) {
	samples := make([]float64, 160)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1
		} else {
			samples[i] = -1
		}
	}
	w := &Waveform{Samples: samples, SampleRate: 8000}

	frames := AnalyzeEnergy(w, 10)
	require.Len(t, frames, 2)
	assert.InDelta(t, 0, frames[0].RMSdB, 1e-9)
}

func TestAnalyzeEnergy_HalfAmplitude(t *testing.T) {
	samples := make([]float64, 80)
	for i := range samples {
		samples[i] = 0.5
		if i%2 == 1 {
			samples[i] = -0.5
		}
	}
	w := &Waveform{Samples: samples, SampleRate: 8000}

	frames := AnalyzeEnergy(w, 10)
	require.Len(t, frames, 1)
	assert.InDelta(t, 20*math.Log10(0.5), frames[0].RMSdB, 1e-9)
}

func TestAnalyzeEnergy_EmptyWaveform(t *testing.T) {
	assert.Nil(t, AnalyzeEnergy(&Waveform{SampleRate: 8000}, 10))
}

func TestClassify(t *testing.T) {
	frames := []EnergyFrame{
		{Index: 0, RMSdB: -20},
		{Index: 1, RMSdB: -45},
		{Index: 2, RMSdB: -40},
		{Index: 3, RMSdB: -120},
	}
	silence := Classify(frames, -40)
	assert.Equal(t, []bool{false, true, false, true}, silence)
}
