package slicer

import "fmt"

// SegmentBoundary is one output segment as a half-open [StartSample,
// EndSample) range of the original waveform, with its derived duration.
type SegmentBoundary struct {
	StartSample int     `json:"start_sample"`
	EndSample   int     `json:"end_sample"`
	LengthMs    float64 `json:"length_ms"`
}

// SliceResult is the ordered output of one pipeline invocation. Segments
// are ordered and non-overlapping; the first starts at sample 0 and the
// last ends at TotalSamples. Adjacent segments are contiguous except across
// a silence region longer than twice MaxSilenceKeptMs, where the interior
// of the region (beyond the kept border on each side) belongs to no
// segment.
type SliceResult struct {
	SampleRate   int               `json:"sample_rate"`
	TotalSamples int               `json:"total_samples"`
	Segments     []SegmentBoundary `json:"segments"`
}

// cutPoint is a resolved cut in frame units. For a silence region short
// enough to keep whole, left == right (a single gapless cut point); for a
// longer region the span (left, right) is the dropped interior.
type cutPoint struct {
	leftFrame  int
	rightFrame int
}

// ResolveBoundaries converts qualifying silence regions into concrete
// segment boundaries and enforces the minimum segment length.
//
// Cut policy per region: when the region exceeds 2×MaxSilenceKeptMs, only
// MaxSilenceKeptMs of silence is retained on each side and the interior is
// dropped from every segment; otherwise the region is cut at its center and
// the neighbors stay contiguous. Regions touching the first or last frame
// never produce cuts; leading and trailing silence stays attached to the
// edge segments, so the result always spans the full waveform.
//
// Undersized segments are merged greedily left to right, preferring the
// following neighbor; a merge across a trimmed cut restores the dropped
// silence. A waveform with no qualifying silence yields one segment.
func ResolveBoundaries(w *Waveform, regions []SilenceRegion, totalFrames int, cfg Config) (*SliceResult, error) {
	total := w.TotalSamples()
	hop := hopSamples(w.SampleRate, cfg.HopSizeMs)
	maxKeptFrames := cfg.MaxSilenceKeptMs / cfg.HopSizeMs

	cuts := resolveCuts(regions, totalFrames, maxKeptFrames)

	segments := buildSegments(cuts, hop, total)
	segments = enforceMinLength(segments, cfg.MinLengthMs, w.SampleRate)

	for i := range segments {
		segments[i].LengthMs = sampleLenMs(segments[i].EndSample-segments[i].StartSample, w.SampleRate)
	}

	result := &SliceResult{
		SampleRate:   w.SampleRate,
		TotalSamples: total,
		Segments:     segments,
	}
	if err := result.verify(cfg); err != nil {
		return nil, err
	}
	return result, nil
}

func resolveCuts(regions []SilenceRegion, totalFrames, maxKeptFrames int) []cutPoint {
	var cuts []cutPoint
	for _, r := range regions {
		// Edge regions stay attached to the first/last segment.
		if r.StartFrame == 0 || r.EndFrame >= totalFrames {
			continue
		}
		if r.Frames() > 2*maxKeptFrames {
			cuts = append(cuts, cutPoint{
				leftFrame:  r.StartFrame + maxKeptFrames,
				rightFrame: r.EndFrame - maxKeptFrames,
			})
			continue
		}
		center := (r.StartFrame + r.EndFrame) / 2
		cuts = append(cuts, cutPoint{leftFrame: center, rightFrame: center})
	}
	return cuts
}

func buildSegments(cuts []cutPoint, hop, total int) []SegmentBoundary {
	segments := make([]SegmentBoundary, 0, len(cuts)+1)
	start := 0
	for _, c := range cuts {
		end := frameToSample(c.leftFrame, hop, total)
		next := frameToSample(c.rightFrame, hop, total)
		if end <= start || next >= total {
			// Degenerate cut (zero retained silence at the very edge of a
			// neighboring cut); skip rather than emit an empty segment.
			continue
		}
		segments = append(segments, SegmentBoundary{StartSample: start, EndSample: end})
		start = next
	}
	segments = append(segments, SegmentBoundary{StartSample: start, EndSample: total})
	return segments
}

// enforceMinLength repeatedly merges segments shorter than minLengthMs into
// a neighbor (the following one when it exists, otherwise the preceding
// one) until every segment satisfies the minimum or one segment remains.
func enforceMinLength(segments []SegmentBoundary, minLengthMs int, sampleRate int) []SegmentBoundary {
	if minLengthMs <= 0 {
		return segments
	}
	for len(segments) > 1 {
		idx := -1
		for i, seg := range segments {
			if sampleLenMs(seg.EndSample-seg.StartSample, sampleRate) < float64(minLengthMs) {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		if idx == len(segments)-1 {
			idx--
		}
		merged := SegmentBoundary{
			StartSample: segments[idx].StartSample,
			EndSample:   segments[idx+1].EndSample,
		}
		segments = append(segments[:idx], append([]SegmentBoundary{merged}, segments[idx+2:]...)...)
	}
	return segments
}

// verify checks the output invariants before the result is released.
// A violation marks a logic defect in the resolver, not bad input.
func (r *SliceResult) verify(cfg Config) error {
	if len(r.Segments) == 0 {
		return &InvariantError{Detail: "no segments produced"}
	}
	first := r.Segments[0]
	last := r.Segments[len(r.Segments)-1]
	if first.StartSample != 0 {
		return &InvariantError{Detail: fmt.Sprintf("first segment starts at %d, want 0", first.StartSample)}
	}
	if last.EndSample != r.TotalSamples {
		return &InvariantError{Detail: fmt.Sprintf("last segment ends at %d, want %d", last.EndSample, r.TotalSamples)}
	}
	for i, seg := range r.Segments {
		if seg.StartSample >= seg.EndSample {
			return &InvariantError{Detail: fmt.Sprintf("segment %d is empty or inverted", i)}
		}
		if i > 0 && seg.StartSample < r.Segments[i-1].EndSample {
			return &InvariantError{Detail: fmt.Sprintf("segment %d overlaps its predecessor", i)}
		}
	}
	if len(r.Segments) > 1 && cfg.MinLengthMs > 0 {
		for i, seg := range r.Segments {
			if sampleLenMs(seg.EndSample-seg.StartSample, r.SampleRate) < float64(cfg.MinLengthMs) {
				return &InvariantError{Detail: fmt.Sprintf("segment %d shorter than min_length_ms", i)}
			}
		}
	}
	return nil
}

func frameToSample(frame, hop, total int) int {
	s := frame * hop
	if s > total {
		return total
	}
	return s
}

func sampleLenMs(samples, sampleRate int) float64 {
	return float64(samples) * 1000 / float64(sampleRate)
}
