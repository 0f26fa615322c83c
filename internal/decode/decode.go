// Package decode turns audio files into analysis-ready waveforms. It
// provides one Decoder per container format plus a Chain that tries an
// ordered list of backends in sequence, the way a primary decoder falls
// back to secondary ones. The slicing core never depends on which backend
// produced the waveform.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/slicekit/slicekit/internal/slicer"
)

// ErrUnsupportedFormat is returned by a Decoder that does not recognize the
// file's container format, letting the chain move on to the next backend.
var ErrUnsupportedFormat = errors.New("decode: unsupported format")

// DecodeError reports that every backend in a chain failed for one file.
// It wraps the per-backend attempt errors.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder decodes one audio file into a mono analysis waveform.
type Decoder interface {
	// Decode reads the file at path and returns its samples reduced to a
	// single channel. Multi-channel audio is downmixed by averaging.
	Decode(ctx context.Context, path string) (*slicer.Waveform, error)

	// Name identifies the backend in logs and error messages.
	Name() string
}

// Chain tries each configured backend in order and returns the first
// successful waveform. All attempt failures are collected; if no backend
// succeeds the caller gets a single *DecodeError carrying every attempt.
type Chain struct {
	decoders []Decoder
	logger   *slog.Logger
}

// NewChain builds a fallback chain from an ordered list of backends.
func NewChain(logger *slog.Logger, decoders ...Decoder) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{decoders: decoders, logger: logger}
}

// Name implements Decoder.
func (c *Chain) Name() string { return "chain" }

// Decode implements Decoder by delegating to each backend in turn.
func (c *Chain) Decode(ctx context.Context, path string) (*slicer.Waveform, error) {
	var attempts *multierror.Error
	for _, d := range c.decoders {
		w, err := d.Decode(ctx, path)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrUnsupportedFormat) {
			c.logger.Debug("decoder failed, trying next",
				slog.String("decoder", d.Name()),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		attempts = multierror.Append(attempts, fmt.Errorf("%s: %w", d.Name(), err))
	}
	if attempts == nil {
		attempts = multierror.Append(attempts, errors.New("no decoders configured"))
	}
	return nil, &DecodeError{Path: path, Err: attempts.ErrorOrNil()}
}

// sniffMagic reads the first four bytes of the file for container
// detection. A file shorter than four bytes cannot be any supported
// container and reports ErrUnsupportedFormat.
func sniffMagic(path string) ([4]byte, error) {
	var magic [4]byte
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return magic, err
	}
	defer f.Close()
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return magic, ErrUnsupportedFormat
		}
		return magic, fmt.Errorf("read magic: %w", err)
	}
	return magic, nil
}

// downmix reduces interleaved multi-channel samples to one channel by
// averaging.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	n := len(interleaved) / channels
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}
