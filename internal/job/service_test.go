package job

import (
	"context"
	"errors"
	"testing"

	"github.com/slicekit/slicekit/internal/batch"
	"github.com/slicekit/slicekit/internal/decode"
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/slicer"
)

// stubDecoder returns a canned waveform per path, or an error.
type stubDecoder struct {
	waveforms map[string]*slicer.Waveform
	errs      map[string]error
}

func (d *stubDecoder) Name() string { return "stub" }

func (d *stubDecoder) Decode(_ context.Context, path string) (*slicer.Waveform, error) {
	if err, ok := d.errs[path]; ok {
		return nil, err
	}
	if w, ok := d.waveforms[path]; ok {
		return w, nil
	}
	return nil, errors.New("unknown path")
}

// stubExporter records export calls and returns one record per segment.
type stubExporter struct {
	calls        []string
	err          error
	sawCancelled bool
}

func (e *stubExporter) Export(ctx context.Context, sourceFile string, _ *slicer.Waveform, res *slicer.SliceResult, _ export.Options) ([]export.Record, error) {
	if ctx.Err() != nil {
		e.sawCancelled = true
	}
	e.calls = append(e.calls, sourceFile)
	if e.err != nil {
		return nil, e.err
	}
	records := make([]export.Record, len(res.Segments))
	for i := range res.Segments {
		records[i] = export.Record{Index: i, SourceFile: sourceFile}
	}
	return records, nil
}

func serialRunnerFactory(mode batch.Mode, workers int) (Runner, error) {
	return batch.NewRunner(mode, workers)
}

// serviceWaveform builds loud audio with one long silent gap so slicing
// produces two segments.
func serviceWaveform() *slicer.Waveform {
	const rate = 1000
	samples := make([]float64, 0, 12*rate)
	appendBlock := func(ms int, amp float64) {
		n := ms * rate / 1000
		for i := 0; i < n; i++ {
			samples = append(samples, amp)
		}
	}
	appendBlock(5000, 0.5)
	appendBlock(800, 0)
	appendBlock(6200, 0.5)
	return &slicer.Waveform{Samples: samples, SampleRate: rate}
}

func serviceParams() slicer.Config {
	cfg := slicer.DefaultConfig()
	cfg.MinLengthMs = 1000
	return cfg
}

func newTestService(dec decode.Decoder, exp Exporter) (*SliceService, *MemoryRepository) {
	repo := NewMemoryRepository()
	return NewSliceService(repo, decode.NewSelector(dec, dec), exp, serialRunnerFactory, nil), repo
}

func TestSliceService_CreateJob(t *testing.T) {
	svc, _ := newTestService(&stubDecoder{}, &stubExporter{})
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, SliceInput{
		Paths:  testPaths(),
		Params: serviceParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.Status != StatusInQueue {
		t.Errorf("expected status %s, got %s", StatusInQueue, j.Status)
	}
	if j.Mode != batch.ModeSerial {
		t.Errorf("expected default mode %s, got %s", batch.ModeSerial, j.Mode)
	}
	if j.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", j.Workers)
	}

	saved, err := svc.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saved.Files) != 2 {
		t.Errorf("expected 2 files, got %d", len(saved.Files))
	}
}

func TestSliceService_CreateJob_Validation(t *testing.T) {
	svc, _ := newTestService(&stubDecoder{}, &stubExporter{})
	ctx := context.Background()

	t.Run("rejects empty path list", func(t *testing.T) {
		_, err := svc.CreateJob(ctx, SliceInput{Params: serviceParams()})
		if err == nil {
			t.Error("expected error for empty path list")
		}
	})

	t.Run("rejects invalid parameters", func(t *testing.T) {
		params := serviceParams()
		params.HopSizeMs = 0
		_, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: params})
		var cfgErr *slicer.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("expected *slicer.ConfigError, got %v", err)
		}
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams(), Mode: "fibers"})
		if !errors.Is(err, batch.ErrUnknownMode) {
			t.Errorf("expected ErrUnknownMode, got %v", err)
		}
	})

	t.Run("rejects unknown decode policy", func(t *testing.T) {
		_, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams(), DecodePolicy: "magic"})
		if !errors.Is(err, decode.ErrUnknownPolicy) {
			t.Errorf("expected ErrUnknownPolicy, got %v", err)
		}
	})

	t.Run("defaults decode policy to chain", func(t *testing.T) {
		j, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if j.DecodePolicy != decode.PolicyChain {
			t.Errorf("expected policy %s, got %s", decode.PolicyChain, j.DecodePolicy)
		}
	})
}

func TestSliceService_CreateJob_DefaultModeOption(t *testing.T) {
	repo := NewMemoryRepository()
	dec := &stubDecoder{}
	svc := NewSliceService(repo, decode.NewSelector(dec, dec), &stubExporter{}, serialRunnerFactory, nil,
		WithDefaultMode(batch.ModeThreads))
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Mode != batch.ModeThreads {
		t.Errorf("expected configured default mode %s, got %s", batch.ModeThreads, j.Mode)
	}

	explicit, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams(), Mode: batch.ModeSerial})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explicit.Mode != batch.ModeSerial {
		t.Errorf("expected requested mode %s, got %s", batch.ModeSerial, explicit.Mode)
	}
}

func TestSliceService_Process(t *testing.T) {
	dec := &stubDecoder{waveforms: map[string]*slicer.Waveform{
		"/in/a.wav": serviceWaveform(),
		"/in/b.wav": serviceWaveform(),
	}}
	exp := &stubExporter{}
	svc, _ := newTestService(dec, exp)
	ctx := context.Background()

	j, err := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected status %s, got %s (error: %s)", StatusCompleted, final.Status, final.Error)
	}
	if final.Progress != 100 {
		t.Errorf("expected progress 100, got %d", final.Progress)
	}
	for i, f := range final.Files {
		if f.Status != FileStatusCompleted {
			t.Errorf("file %d: expected %s, got %s (%s)", i, FileStatusCompleted, f.Status, f.Error)
		}
		if len(f.Records) == 0 {
			t.Errorf("file %d: expected exported records", i)
		}
	}
	if len(exp.calls) != 2 {
		t.Errorf("expected 2 export calls, got %d", len(exp.calls))
	}
}

func TestSliceService_Process_FaultIsolation(t *testing.T) {
	dec := &stubDecoder{
		waveforms: map[string]*slicer.Waveform{"/in/a.wav": serviceWaveform()},
		errs:      map[string]error{"/in/b.wav": errors.New("corrupt header")},
	}
	svc, _ := newTestService(dec, &stubExporter{})
	ctx := context.Background()

	j, _ := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected status %s, got %s", StatusCompleted, final.Status)
	}
	if final.Files[0].Status != FileStatusCompleted {
		t.Errorf("file 0: expected %s, got %s", FileStatusCompleted, final.Files[0].Status)
	}
	if final.Files[1].Status != FileStatusFailed {
		t.Errorf("file 1: expected %s, got %s", FileStatusFailed, final.Files[1].Status)
	}
	if final.Files[1].Error == "" {
		t.Error("file 1: expected error message")
	}
}

func TestSliceService_Process_SkipPolicySkipsUndecodable(t *testing.T) {
	dec := &stubDecoder{
		waveforms: map[string]*slicer.Waveform{"/in/a.wav": serviceWaveform()},
		errs:      map[string]error{"/in/b.wav": errors.New("corrupt header")},
	}
	svc, _ := newTestService(dec, &stubExporter{})
	ctx := context.Background()

	j, _ := svc.CreateJob(ctx, SliceInput{
		Paths:        testPaths(),
		Params:       serviceParams(),
		DecodePolicy: decode.PolicySkip,
	})
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected status %s, got %s", StatusCompleted, final.Status)
	}
	if final.Files[0].Status != FileStatusCompleted {
		t.Errorf("file 0: expected %s, got %s", FileStatusCompleted, final.Files[0].Status)
	}
	if final.Files[1].Status != FileStatusSkipped {
		t.Errorf("file 1: expected %s, got %s", FileStatusSkipped, final.Files[1].Status)
	}
	if final.Files[1].Error == "" {
		t.Error("file 1: expected error message on skipped file")
	}
}

func TestSliceService_Process_AllFilesFailed(t *testing.T) {
	dec := &stubDecoder{errs: map[string]error{
		"/in/a.wav": errors.New("corrupt"),
		"/in/b.wav": errors.New("corrupt"),
	}}
	svc, _ := newTestService(dec, &stubExporter{})
	ctx := context.Background()

	j, _ := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, final.Status)
	}
}

func TestSliceService_Process_ExportFailureFailsFile(t *testing.T) {
	dec := &stubDecoder{waveforms: map[string]*slicer.Waveform{
		"/in/a.wav": serviceWaveform(),
		"/in/b.wav": serviceWaveform(),
	}}
	exp := &stubExporter{err: errors.New("disk full")}
	svc, _ := newTestService(dec, exp)
	ctx := context.Background()

	j, _ := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, final.Status)
	}
	for i, f := range final.Files {
		if f.Status != FileStatusFailed {
			t.Errorf("file %d: expected %s, got %s", i, FileStatusFailed, f.Status)
		}
	}
}

func TestSliceService_Cancel_QueuedJob(t *testing.T) {
	svc, _ := newTestService(&stubDecoder{}, &stubExporter{})
	ctx := context.Background()

	j, _ := svc.CreateJob(ctx, SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err := svc.Cancel(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(ctx, j.ID)
	if final.Status != StatusCancelled {
		t.Errorf("expected status %s, got %s", StatusCancelled, final.Status)
	}
}

func TestSliceService_Cancel_NotFound(t *testing.T) {
	svc, _ := newTestService(&stubDecoder{}, &stubExporter{})

	err := svc.Cancel(context.Background(), "nonexistent")
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

// cancelAfterRunRunner cancels the given context once the batch finishes,
// simulating a cancel request that lands after slicing but before export.
type cancelAfterRunRunner struct {
	inner  Runner
	cancel context.CancelFunc
}

func (r *cancelAfterRunRunner) Run(ctx context.Context, tasks []batch.Task) []batch.Result {
	results := r.inner.Run(ctx, tasks)
	r.cancel()
	return results
}

func TestSliceService_Process_CancelAfterSlicingStillExports(t *testing.T) {
	dec := &stubDecoder{waveforms: map[string]*slicer.Waveform{
		"/in/a.wav": serviceWaveform(),
		"/in/b.wav": serviceWaveform(),
	}}
	exp := &stubExporter{}
	repo := NewMemoryRepository()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	factory := func(mode batch.Mode, workers int) (Runner, error) {
		inner, err := batch.NewRunner(mode, workers)
		if err != nil {
			return nil, err
		}
		return &cancelAfterRunRunner{inner: inner, cancel: cancel}, nil
	}
	svc := NewSliceService(repo, decode.NewSelector(dec, dec), exp, factory, nil)

	j, _ := svc.CreateJob(context.Background(), SliceInput{Paths: testPaths(), Params: serviceParams()})
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(context.Background(), j.ID)
	if final.Status != StatusCancelled {
		t.Fatalf("expected status %s, got %s", StatusCancelled, final.Status)
	}
	for i, f := range final.Files {
		if f.Status != FileStatusCompleted {
			t.Errorf("file %d: expected %s, got %s (%s)", i, FileStatusCompleted, f.Status, f.Error)
		}
		if len(f.Records) == 0 {
			t.Errorf("file %d: expected exported records", i)
		}
	}
	if exp.sawCancelled {
		t.Error("exporter received a cancelled context for finished slices")
	}
}

func TestSliceService_Process_CancelledContextSkipsFiles(t *testing.T) {
	dec := &stubDecoder{waveforms: map[string]*slicer.Waveform{
		"/in/a.wav": serviceWaveform(),
		"/in/b.wav": serviceWaveform(),
	}}
	svc, _ := newTestService(dec, &stubExporter{})

	j, _ := svc.CreateJob(context.Background(), SliceInput{Paths: testPaths(), Params: serviceParams()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Process(ctx, j.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final, _ := svc.GetJob(context.Background(), j.ID)
	if final.Status != StatusCancelled {
		t.Fatalf("expected status %s, got %s", StatusCancelled, final.Status)
	}
	for i, f := range final.Files {
		if f.Status != FileStatusSkipped {
			t.Errorf("file %d: expected %s, got %s", i, FileStatusSkipped, f.Status)
		}
	}
}
