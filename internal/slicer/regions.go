package slicer

// SilenceRegion is a maximal run of silence-classified frames, expressed as
// a half-open [StartFrame, EndFrame) span in frame-index units.
type SilenceRegion struct {
	StartFrame int
	EndFrame   int
}

// Frames returns the number of frames the region spans.
func (r SilenceRegion) Frames() int { return r.EndFrame - r.StartFrame }

// BuildSilenceRegions merges consecutive silence-classified frames into
// maximal regions and discards the ones shorter than minIntervalMs: spans
// too short to be a legitimate split point are folded back into the
// surrounding non-silence. The result is ordered and non-overlapping.
func BuildSilenceRegions(silence []bool, hopSizeMs, minIntervalMs int) []SilenceRegion {
	minFrames := (minIntervalMs + hopSizeMs - 1) / hopSizeMs
	if minFrames < 1 {
		minFrames = 1
	}

	var regions []SilenceRegion
	start := -1
	for i, sil := range silence {
		switch {
		case sil && start == -1:
			start = i
		case !sil && start != -1:
			if i-start >= minFrames {
				regions = append(regions, SilenceRegion{StartFrame: start, EndFrame: i})
			}
			start = -1
		}
	}
	if start != -1 && len(silence)-start >= minFrames {
		regions = append(regions, SilenceRegion{StartFrame: start, EndFrame: len(silence)})
	}
	return regions
}
