package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/slicekit/slicekit/internal/slicer"
)

// WAV format codes from the fmt chunk.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// WAVDecoder reads RIFF/WAVE files with integer PCM (8/16/24/32 bit) or
// IEEE float (32/64 bit) sample data.
type WAVDecoder struct{}

// NewWAVDecoder creates a WAVDecoder.
func NewWAVDecoder() *WAVDecoder { return &WAVDecoder{} }

// Name implements Decoder.
func (d *WAVDecoder) Name() string { return "wav" }

// Decode implements Decoder.
func (d *WAVDecoder) Decode(_ context.Context, path string) (*slicer.Waveform, error) {
	magic, err := sniffMagic(path)
	if err != nil {
		return nil, err
	}
	if string(magic[:]) != "RIFF" {
		return nil, ErrUnsupportedFormat
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("wav: stat: %w", err)
	}

	return decodeWAV(f, fi.Size())
}

type wavFormat struct {
	code          uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

// decodeWAV parses the RIFF stream. fileSize bounds the chunk sizes claimed
// by the header so a malformed file cannot force a huge allocation.
func decodeWAV(r io.Reader, fileSize int64) (*slicer.Waveform, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wav: read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, ErrUnsupportedFormat
	}

	var format *wavFormat
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, errors.New("wav: no data chunk")
			}
			return nil, fmt.Errorf("wav: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		if int64(size) > fileSize {
			return nil, fmt.Errorf("wav: %q chunk claims %d bytes, file is %d", id, size, fileSize)
		}

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("wav: read fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, errors.New("wav: fmt chunk too short")
			}
			format = &wavFormat{
				code:          binary.LittleEndian.Uint16(body[0:2]),
				channels:      int(binary.LittleEndian.Uint16(body[2:4])),
				sampleRate:    int(binary.LittleEndian.Uint32(body[4:8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(body[14:16])),
			}
		case "data":
			if format == nil {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("wav: read data chunk: %w", err)
			}
			return samplesFromWAV(body, format)
		default:
			// Skip unknown chunks, honoring the RIFF even-byte padding.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("wav: skip %q chunk: %w", id, err)
			}
		}
	}
}

func samplesFromWAV(data []byte, format *wavFormat) (*slicer.Waveform, error) {
	if format.channels < 1 {
		return nil, errors.New("wav: zero channels")
	}
	if format.sampleRate < 1 {
		return nil, errors.New("wav: zero sample rate")
	}

	var interleaved []float64
	switch {
	case format.code == wavFormatPCM && format.bitsPerSample == 8:
		interleaved = make([]float64, len(data))
		for i, b := range data {
			interleaved[i] = (float64(b) - 128) / 128
		}
	case format.code == wavFormatPCM && format.bitsPerSample == 16:
		n := len(data) / 2
		interleaved = make([]float64, n)
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			interleaved[i] = float64(v) / 32768
		}
	case format.code == wavFormatPCM && format.bitsPerSample == 24:
		n := len(data) / 3
		interleaved = make([]float64, n)
		for i := 0; i < n; i++ {
			b := data[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign-extend
			}
			interleaved[i] = float64(v) / 8388608
		}
	case format.code == wavFormatPCM && format.bitsPerSample == 32:
		n := len(data) / 4
		interleaved = make([]float64, n)
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			interleaved[i] = float64(v) / 2147483648
		}
	case format.code == wavFormatFloat && format.bitsPerSample == 32:
		n := len(data) / 4
		interleaved = make([]float64, n)
		for i := 0; i < n; i++ {
			interleaved[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	case format.code == wavFormatFloat && format.bitsPerSample == 64:
		n := len(data) / 8
		interleaved = make([]float64, n)
		for i := 0; i < n; i++ {
			interleaved[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	default:
		return nil, fmt.Errorf("wav: unsupported sample format (code %d, %d bits)", format.code, format.bitsPerSample)
	}

	return &slicer.Waveform{
		Samples:    downmix(interleaved, format.channels),
		SampleRate: format.sampleRate,
	}, nil
}
