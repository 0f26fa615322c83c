package slicer

// EmptyPolicy selects how a zero-sample waveform is handled.
type EmptyPolicy int

const (
	// EmptyPolicyError surfaces ErrEmptyWaveform (default).
	EmptyPolicyError EmptyPolicy = iota
	// EmptyPolicySingleSegment yields one zero-length segment instead.
	EmptyPolicySingleSegment
)

// Slicer runs the full segmentation pipeline for one waveform at a time.
// It is stateless apart from its configuration and safe for concurrent use.
type Slicer struct {
	cfg         Config
	emptyPolicy EmptyPolicy
}

// Option configures a Slicer.
type Option func(*Slicer)

// WithEmptyPolicy overrides the handling of zero-sample inputs.
func WithEmptyPolicy(p EmptyPolicy) Option {
	return func(s *Slicer) { s.emptyPolicy = p }
}

// New validates cfg and returns a Slicer. Validation failures are returned
// as *ConfigError before any waveform is accepted.
func New(cfg Config, opts ...Option) (*Slicer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Slicer{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the validated configuration the Slicer runs with.
func (s *Slicer) Config() Config { return s.cfg }

// Slice partitions the waveform into segments:
//
//	energy analysis → threshold estimation → classification →
//	voice-activity adjustment → silence regions → boundary resolution.
//
// The call is synchronous and deterministic; the same waveform and
// configuration always produce the same result regardless of how the caller
// schedules it.
func (s *Slicer) Slice(w *Waveform) (*SliceResult, error) {
	if w == nil || w.TotalSamples() == 0 {
		if s.emptyPolicy == EmptyPolicySingleSegment {
			sr := 0
			if w != nil {
				sr = w.SampleRate
			}
			return &SliceResult{
				SampleRate: sr,
				Segments:   []SegmentBoundary{{}},
			}, nil
		}
		return nil, ErrEmptyWaveform
	}

	frames := AnalyzeEnergy(w, s.cfg.HopSizeMs)
	threshold := EstimateThreshold(frames, s.cfg)
	silence := Classify(frames, threshold)
	silence = AdjustVoiceActivity(frames, silence, threshold, s.cfg)
	regions := BuildSilenceRegions(silence, s.cfg.HopSizeMs, s.cfg.MinIntervalMs)
	return ResolveBoundaries(w, regions, len(frames), s.cfg)
}
