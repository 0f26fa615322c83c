package decode

import (
	"context"
	"fmt"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/slicekit/slicekit/internal/slicer"
)

// OggDecoder reads Ogg Vorbis streams.
type OggDecoder struct{}

// NewOggDecoder creates an OggDecoder.
func NewOggDecoder() *OggDecoder { return &OggDecoder{} }

// Name implements Decoder.
func (d *OggDecoder) Name() string { return "oggvorbis" }

// Decode implements Decoder.
func (d *OggDecoder) Decode(_ context.Context, path string) (*slicer.Waveform, error) {
	magic, err := sniffMagic(path)
	if err != nil {
		return nil, err
	}
	if string(magic[:]) != "OggS" {
		return nil, ErrUnsupportedFormat
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("oggvorbis: read: %w", err)
	}

	interleaved := make([]float64, len(data))
	for i, s := range data {
		interleaved[i] = float64(s)
	}

	return &slicer.Waveform{
		Samples:    downmix(interleaved, format.Channels),
		SampleRate: format.SampleRate,
	}, nil
}
