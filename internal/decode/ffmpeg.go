package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/slicekit/slicekit/internal/slicer"
)

// TempStore is the slice of the storage port the ffmpeg backend needs:
// decoded audio is spooled through a temp file instead of held in memory
// for the whole subprocess run.
type TempStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)
	CleanupTemp(ctx context.Context, paths []string) error
}

// FFmpegDecoder decodes any format ffmpeg understands by shelling out to
// the ffmpeg CLI. It is the last backend in the default chain, covering
// formats the native decoders do not.
type FFmpegDecoder struct {
	ffmpegPath string
	temp       TempStore
}

// NewFFmpegDecoder creates a new FFmpegDecoder spooling through temp.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegDecoder(ffmpegPath string, temp TempStore) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDecoder{ffmpegPath: ffmpegPath, temp: temp}
}

// Name implements Decoder.
func (d *FFmpegDecoder) Name() string { return "ffmpeg" }

// sampleRateRe matches the stream sample rate in ffmpeg's stderr output,
// e.g. "Audio: mp3, 44100 Hz, stereo".
var sampleRateRe = regexp.MustCompile(`(\d+) Hz`)

// Decode implements Decoder. It probes the sample rate first, then decodes
// the audio to raw 64-bit floats downmixed to one channel. The raw stream
// is written to a temp file as it is produced and read back once the
// subprocess exits; the temp file is removed before returning.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*slicer.Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ffmpeg: input file: %w", err)
	}

	sampleRate, err := d.probeSampleRate(ctx, path)
	if err != nil {
		return nil, err
	}

	tmpPath, stderr, err := d.decodeToTemp(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Cleanup runs even when the surrounding job was cancelled.
		_ = d.temp.CleanupTemp(context.WithoutCancel(ctx), []string{tmpPath})
	}()

	rc, err := d.temp.LoadTemp(ctx, tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: load decoded audio: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: read decoded audio: %w, stderr: %s", err, stderr)
	}

	samples := make([]float64, len(raw)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}

	return &slicer.Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

// decodeToTemp runs ffmpeg and streams its raw f64le output into a temp
// file, returning the temp path and ffmpeg's stderr.
func (d *FFmpegDecoder) decodeToTemp(ctx context.Context, path string) (string, string, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-f", "f64le",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("ffmpeg: start: %w", err)
	}

	tmpPath, saveErr := d.temp.SaveTemp(ctx, filepath.Base(path)+".f64le", stdout)
	if err := cmd.Wait(); err != nil {
		if saveErr == nil {
			_ = d.temp.CleanupTemp(context.WithoutCancel(ctx), []string{tmpPath})
		}
		return "", "", fmt.Errorf("ffmpeg: decode: %w, stderr: %s", err, stderr.String())
	}
	if saveErr != nil {
		return "", "", fmt.Errorf("ffmpeg: spool decoded audio: %w", saveErr)
	}
	return tmpPath, stderr.String(), nil
}

// probeSampleRate parses the stream sample rate from ffmpeg's stderr.
func (d *FFmpegDecoder) probeSampleRate(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", path,
		"-hide_banner",
		"-f", "null", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg exits non-zero with a null muxer; the stream info we need is
	// on stderr either way.
	_ = cmd.Run()

	matches := sampleRateRe.FindStringSubmatch(stderr.String())
	if len(matches) < 2 {
		return 0, fmt.Errorf("ffmpeg: could not parse sample rate from output: %s", stderr.String())
	}
	rate, err := strconv.Atoi(matches[1])
	if err != nil || rate < 1 {
		return 0, fmt.Errorf("ffmpeg: invalid sample rate %q", matches[1])
	}
	return rate, nil
}
