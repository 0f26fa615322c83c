package decode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/slicekit/slicekit/internal/slicer"
)

// FLACDecoder reads native FLAC streams.
type FLACDecoder struct{}

// NewFLACDecoder creates a FLACDecoder.
func NewFLACDecoder() *FLACDecoder { return &FLACDecoder{} }

// Name implements Decoder.
func (d *FLACDecoder) Name() string { return "flac" }

// Decode implements Decoder.
func (d *FLACDecoder) Decode(_ context.Context, path string) (*slicer.Waveform, error) {
	magic, err := sniffMagic(path)
	if err != nil {
		return nil, err
	}
	if string(magic[:]) != "fLaC" {
		return nil, ErrUnsupportedFormat
	}

	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("flac: parse: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels < 1 {
		return nil, errors.New("flac: zero channels")
	}
	scale := float64(int64(1) << (info.BitsPerSample - 1))

	samples := make([]float64, 0, info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac: parse frame: %w", err)
		}
		if len(frame.Subframes) < channels {
			return nil, errors.New("flac: frame is missing channels")
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += float64(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, sum/float64(channels)/scale)
		}
	}

	return &slicer.Waveform{
		Samples:    samples,
		SampleRate: int(info.SampleRate),
	}, nil
}
