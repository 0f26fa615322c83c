package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV16 builds a minimal RIFF/WAVE file with 16-bit PCM interleaved
// samples and writes it to a temp file.
func writeWAV16(t *testing.T, sampleRate, channels int, samples []int16) string {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		require.NoError(t, binary.Write(&data, binary.LittleEndian, s))
	}

	var fmtChunk bytes.Buffer
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(channels))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(channels*2))            // block align
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(16))

	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+data.Len()))
	file.WriteString("WAVE")
	file.WriteString("fmt ")
	binary.Write(&file, binary.LittleEndian, uint32(fmtChunk.Len()))
	file.Write(fmtChunk.Bytes())
	file.WriteString("data")
	binary.Write(&file, binary.LittleEndian, uint32(data.Len()))
	file.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "test.wav")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o600))
	return path
}

func TestWAVDecoder_Decode(t *testing.T) {
	path := writeWAV16(t, 8000, 1, []int16{0, 16384, -16384, 32767})

	w, err := NewWAVDecoder().Decode(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 8000, w.SampleRate)
	require.Len(t, w.Samples, 4)
	assert.InDelta(t, 0.0, w.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, w.Samples[1], 1e-9)
	assert.InDelta(t, -0.5, w.Samples[2], 1e-9)
	assert.InDelta(t, 1.0, w.Samples[3], 1e-4)
}

func TestWAVDecoder_DownmixesStereo(t *testing.T) {
	// Left and right cancel on the first frame and reinforce on the second.
	path := writeWAV16(t, 16000, 2, []int16{16384, -16384, 16384, 16384})

	w, err := NewWAVDecoder().Decode(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, w.Samples, 2)
	assert.InDelta(t, 0.0, w.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, w.Samples[1], 1e-9)
}

func TestWAVDecoder_RejectsOtherFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.flac")
	require.NoError(t, os.WriteFile(path, []byte("fLaC....."), 0o600))

	_, err := NewWAVDecoder().Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWAVDecoder_SkipsUnknownChunks(t *testing.T) {
	// LIST chunk between fmt and data has to be skipped.
	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, int16(16384))

	var fmtChunk bytes.Buffer
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(1))
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(1))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(8000))
	binary.Write(&fmtChunk, binary.LittleEndian, uint32(16000))
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(2))
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(16))

	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(0)) // size is not checked
	file.WriteString("WAVE")
	file.WriteString("fmt ")
	binary.Write(&file, binary.LittleEndian, uint32(fmtChunk.Len()))
	file.Write(fmtChunk.Bytes())
	file.WriteString("LIST")
	binary.Write(&file, binary.LittleEndian, uint32(5)) // odd size forces padding
	file.Write([]byte{1, 2, 3, 4, 5, 0})
	file.WriteString("data")
	binary.Write(&file, binary.LittleEndian, uint32(data.Len()))
	file.Write(data.Bytes())

	w, err := decodeWAV(&file, int64(file.Len()))
	require.NoError(t, err)
	require.Len(t, w.Samples, 1)
	assert.InDelta(t, 0.5, w.Samples[0], 1e-9)
}

func TestWAVDecoder_RejectsOversizedChunk(t *testing.T) {
	// A data chunk claiming ~4 GiB must be rejected before allocation.
	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(36))
	file.WriteString("WAVE")
	file.WriteString("data")
	binary.Write(&file, binary.LittleEndian, uint32(0xFFFFFFF0))

	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, file.Bytes(), 0o600))

	_, err := NewWAVDecoder().Decode(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk claims")
}

func TestWAVDecoder_TruncatedFile(t *testing.T) {
	// Fewer than four bytes cannot be identified as any container.
	path := filepath.Join(t.TempDir(), "tiny.wav")
	require.NoError(t, os.WriteFile(path, []byte("RI"), 0o600))

	_, err := NewWAVDecoder().Decode(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSamplesFromWAV_FloatFormats(t *testing.T) {
	var f32 bytes.Buffer
	binary.Write(&f32, binary.LittleEndian, float32(0.25))
	w, err := samplesFromWAV(f32.Bytes(), &wavFormat{code: wavFormatFloat, channels: 1, sampleRate: 8000, bitsPerSample: 32})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, w.Samples[0], 1e-6)

	var f64 bytes.Buffer
	binary.Write(&f64, binary.LittleEndian, -0.75)
	w, err = samplesFromWAV(f64.Bytes(), &wavFormat{code: wavFormatFloat, channels: 1, sampleRate: 8000, bitsPerSample: 64})
	require.NoError(t, err)
	assert.InDelta(t, -0.75, w.Samples[0], 1e-12)
}

func TestSamplesFromWAV_24BitSignExtension(t *testing.T) {
	// 0x800000 is the most negative 24-bit value.
	data := []byte{0x00, 0x00, 0x80}
	w, err := samplesFromWAV(data, &wavFormat{code: wavFormatPCM, channels: 1, sampleRate: 8000, bitsPerSample: 24})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, w.Samples[0], 1e-9)
}

func TestSamplesFromWAV_UnsupportedBitDepth(t *testing.T) {
	_, err := samplesFromWAV(make([]byte, 4), &wavFormat{code: wavFormatPCM, channels: 1, sampleRate: 8000, bitsPerSample: 12})
	assert.Error(t, err)
}

func TestDownmix(t *testing.T) {
	mono := downmix([]float64{0.2, 0.4, -0.4, 0.8}, 2)
	require.Len(t, mono, 2)
	assert.InDelta(t, 0.3, mono[0], 1e-12)
	assert.InDelta(t, 0.2, mono[1], 1e-12)

	passthrough := []float64{0.1, 0.2}
	assert.Equal(t, passthrough, downmix(passthrough, 1))
}

func TestDownmix_Float32Precision(t *testing.T) {
	v := float64(float32(math.Pi / 4))
	mono := downmix([]float64{v, v}, 2)
	assert.InDelta(t, v, mono[0], 1e-12)
}
