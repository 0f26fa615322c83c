// Package export persists slicing results: per-segment WAV files plus a
// CSV or JSON manifest describing every cut. Files are written through
// the storage layer so local disk and S3-backed deployments share one
// code path.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/slicekit/slicekit/internal/slicer"
	"github.com/slicekit/slicekit/internal/storage"
)

// timestampLayout matches names like segments_20260823_153045.
const timestampLayout = "20060102_150405"

// Record describes one exported segment in the manifest.
type Record struct {
	Index      int     `json:"index" csv:"index"`
	StartMs    float64 `json:"start_ms" csv:"start_ms"`
	EndMs      float64 `json:"end_ms" csv:"end_ms"`
	LengthMs   float64 `json:"length_ms" csv:"length_ms"`
	OutputPath string  `json:"output_path" csv:"output_path"`
	SourceFile string  `json:"source_file" csv:"source_file"`
}

// ManifestFormat selects the manifest encoding.
type ManifestFormat string

const (
	ManifestCSV  ManifestFormat = "csv"
	ManifestJSON ManifestFormat = "json"
)

// Options controls how segments are named and persisted.
type Options struct {
	// Prefix is prepended to each segment filename. Defaults to the
	// source file's base name.
	Prefix string

	// Suffix is appended before the extension.
	Suffix string

	// Timestamp adds the export start time to filenames, keeping
	// repeated runs against the same source from colliding.
	Timestamp bool

	// Manifest selects the manifest encoding. Empty skips the manifest.
	Manifest ManifestFormat

	// UploadS3 also uploads every written artifact to S3.
	UploadS3 bool
}

// Exporter writes segment audio and manifests for completed slices.
type Exporter struct {
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates an Exporter backed by the given storage.
func NewExporter(store storage.Storage, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, logger: logger, now: time.Now}
}

// Export writes one WAV file per segment of the slice result and an
// optional manifest, returning one Record per segment in boundary order.
func (e *Exporter) Export(ctx context.Context, sourceFile string, w *slicer.Waveform, res *slicer.SliceResult, opts Options) ([]Record, error) {
	if res == nil || len(res.Segments) == 0 {
		return nil, fmt.Errorf("export %s: no segments", sourceFile)
	}

	base := opts.Prefix
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	}
	stamp := ""
	if opts.Timestamp {
		stamp = "_" + e.now().Format(timestampLayout)
	}

	records := make([]Record, 0, len(res.Segments))
	for i, seg := range res.Segments {
		name := fmt.Sprintf("%s%s%s_%03d.wav", base, opts.Suffix, stamp, i)

		data, err := EncodeWAV(w.Samples[seg.StartSample:seg.EndSample], w.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("export %s segment %d: %w", sourceFile, i, err)
		}

		path, err := e.persist(ctx, name, data, opts)
		if err != nil {
			return nil, fmt.Errorf("export %s segment %d: %w", sourceFile, i, err)
		}

		startMs := float64(seg.StartSample) / float64(w.SampleRate) * 1000
		records = append(records, Record{
			Index:      i,
			StartMs:    startMs,
			EndMs:      startMs + seg.LengthMs,
			LengthMs:   seg.LengthMs,
			OutputPath: path,
			SourceFile: sourceFile,
		})
	}

	if opts.Manifest != "" {
		if err := e.writeManifest(ctx, base+opts.Suffix+stamp, records, opts); err != nil {
			return nil, fmt.Errorf("export %s: %w", sourceFile, err)
		}
	}

	e.logger.Info("exported segments",
		slog.String("source", sourceFile),
		slog.Int("segments", len(records)),
	)
	return records, nil
}

// persist writes one artifact to the output directory and, when asked,
// to S3 as well. The returned path is always the local one.
func (e *Exporter) persist(ctx context.Context, name string, data []byte, opts Options) (string, error) {
	path, err := e.store.SaveOutput(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if opts.UploadS3 {
		url, err := e.store.UploadToS3(ctx, name, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", name, err)
		}
		e.logger.Debug("uploaded artifact", slog.String("url", url))
	}
	return path, nil
}

func (e *Exporter) writeManifest(ctx context.Context, base string, records []Record, opts Options) (err error) {
	var data []byte
	var name string
	switch opts.Manifest {
	case ManifestCSV:
		name = base + ".csv"
		data, err = encodeCSV(records)
	case ManifestJSON:
		name = base + ".json"
		data, err = encodeJSON(records)
	default:
		return fmt.Errorf("unknown manifest format %q", opts.Manifest)
	}
	if err != nil {
		return err
	}
	_, err = e.persist(ctx, name, data, opts)
	return err
}
