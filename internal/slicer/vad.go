package slicer

import "math"

// vadMarginScaleDB is the energy margin below the threshold, at full
// sensitivity, within which a frame still counts as trailing speech.
const vadMarginScaleDB = 12.0

// AdjustVoiceActivity re-examines frames classified as silence and rescues
// the ones that belong to trailing speech. A silence frame immediately
// following speech is reclassified as non-silence while its energy stays
// within the sensitivity-scaled margin below the threshold; once the energy
// drops out of the margin, classification is still held as non-silence for
// the configured hangover duration so quiet consonants and decay tails do
// not open a silence region early.
//
// When cfg.VADEnabled is false this is the identity transform. The input
// slice is never mutated.
func AdjustVoiceActivity(frames []EnergyFrame, silence []bool, thresholdDB float64, cfg Config) []bool {
	out := make([]bool, len(silence))
	copy(out, silence)
	if !cfg.VADEnabled {
		return out
	}

	marginDB := cfg.VADSensitivity * vadMarginScaleDB
	hangoverFrames := 0
	if cfg.VADHangoverMs > 0 {
		hangoverFrames = int(math.Round(float64(cfg.VADHangoverMs) / float64(cfg.HopSizeMs)))
		if hangoverFrames < 1 {
			hangoverFrames = 1
		}
	}

	inSpeech := false
	hang := 0
	for i := range frames {
		if !out[i] {
			inSpeech = true
			hang = hangoverFrames
			continue
		}
		if inSpeech && frames[i].RMSdB >= thresholdDB-marginDB {
			// Near-threshold frame trailing a speech run.
			out[i] = false
			hang = hangoverFrames
			continue
		}
		if hang > 0 {
			out[i] = false
			hang--
			continue
		}
		inSpeech = false
	}
	return out
}
