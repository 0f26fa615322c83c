package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slicekit/slicekit/internal/batch"
	"github.com/slicekit/slicekit/internal/decode"
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/slicer"
)

// Runner executes a batch of slicing tasks. Satisfied by *batch.Runner.
type Runner interface {
	Run(ctx context.Context, tasks []batch.Task) []batch.Result
}

// Exporter persists segments and manifests. Satisfied by *export.Exporter.
type Exporter interface {
	Export(ctx context.Context, sourceFile string, w *slicer.Waveform, res *slicer.SliceResult, opts export.Options) ([]export.Record, error)
}

// DecoderSelector picks the decode backend for a job's decode policy.
// Satisfied by *decode.Selector.
type DecoderSelector interface {
	For(policy decode.Policy) decode.Decoder
}

// RunnerFactory builds a Runner for the given mode and worker count.
// Jobs choose their own execution strategy, so runners are per-job.
type RunnerFactory func(mode batch.Mode, workers int) (Runner, error)

// SliceInput contains the parameters for a new slicing job.
type SliceInput struct {
	// Paths are the input audio files, processed in order.
	Paths []string
	// Params are the slicing parameters shared by every file.
	Params slicer.Config
	// Mode selects the batch execution strategy.
	Mode batch.Mode
	// Workers bounds concurrent file processing.
	Workers int
	// DecodePolicy selects the decode backends and failure handling.
	DecodePolicy decode.Policy
	// Export controls segment naming and manifest output.
	Export export.Options
}

// SliceService orchestrates the slicing workflow: decode each input file,
// run the batch of slicing tasks, and export the resulting segments. It
// owns job persistence and cooperative cancellation.
type SliceService struct {
	repo        Repository
	decoders    DecoderSelector
	exporter    Exporter
	newRunner   RunnerFactory
	defaultMode batch.Mode
	logger      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// ServiceOption configures a SliceService.
type ServiceOption func(*SliceService)

// WithDefaultMode sets the execution mode used by jobs that do not request
// one. Unset, jobs default to serial execution.
func WithDefaultMode(mode batch.Mode) ServiceOption {
	return func(s *SliceService) {
		s.defaultMode = mode
	}
}

// NewSliceService creates a new SliceService.
func NewSliceService(repo Repository, decoders DecoderSelector, exporter Exporter, newRunner RunnerFactory, logger *slog.Logger, opts ...ServiceOption) *SliceService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SliceService{
		repo:        repo,
		decoders:    decoders,
		exporter:    exporter,
		newRunner:   newRunner,
		defaultMode: batch.ModeSerial,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates the input, creates a new job and persists it in
// IN_QUEUE status.
func (s *SliceService) CreateJob(ctx context.Context, input SliceInput) (*Job, error) {
	if len(input.Paths) == 0 {
		return nil, errors.New("no input files")
	}
	if err := input.Params.Validate(); err != nil {
		return nil, err
	}
	if input.Mode == "" {
		input.Mode = s.defaultMode
	} else if _, err := batch.ParseMode(string(input.Mode)); err != nil {
		return nil, err
	}
	if input.Workers < 1 {
		input.Workers = 1
	}
	policy, err := decode.ParsePolicy(string(input.DecodePolicy))
	if err != nil {
		return nil, err
	}

	j := New(input.Paths)
	j.Params = input.Params
	j.Mode = input.Mode
	j.Workers = input.Workers
	j.DecodePolicy = policy
	j.Export = input.Export

	s.logger.Info("creating slicing job",
		slog.String("job_id", j.ID),
		slog.Int("files", len(input.Paths)),
		slog.String("mode", string(input.Mode)),
		slog.Int("workers", input.Workers),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return j, nil
}

// GetJob retrieves a job by ID.
func (s *SliceService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs.
func (s *SliceService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Cancel requests cancellation of a job. Running jobs stop between files;
// the file in flight finishes first. Queued jobs are cancelled immediately.
func (s *SliceService) Cancel(ctx context.Context, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()

	if running {
		cancel()
		return nil
	}

	// Not yet picked up: mark it cancelled directly.
	if err := j.Cancel(); err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	return s.repo.Save(ctx, j)
}

// Process executes the slicing workflow for a previously created job.
// It transitions the job to RUNNING and, when done, to COMPLETED (even if
// some files failed), FAILED (nothing could run), or CANCELLED.
func (s *SliceService) Process(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := j.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
		cancel()
	}()

	runner, err := s.newRunner(j.Mode, j.Workers)
	if err != nil {
		_ = j.Fail(err.Error())
		return s.repo.Save(ctx, j)
	}

	waveforms := s.decodeFiles(ctx, j)
	results := s.runTasks(ctx, j, runner, waveforms)
	s.exportResults(ctx, j, waveforms, results)

	cancelled := ctx.Err() != nil
	s.finish(j, cancelled)

	// Persist through the parent context so a cancelled job still lands
	// in the repository.
	return s.repo.Save(context.WithoutCancel(ctx), j)
}

// decodeFiles decodes every pending input with the job's decode policy,
// updating per-file results as it goes. The returned slice is indexed like
// j.Files; failed or skipped entries are nil.
func (s *SliceService) decodeFiles(ctx context.Context, j *Job) []*slicer.Waveform {
	decoder := s.decoders.For(j.DecodePolicy)
	waveforms := make([]*slicer.Waveform, len(j.Files))
	for i := range j.Files {
		f := j.Files[i]
		if ctx.Err() != nil {
			f.Status = FileStatusSkipped
			j.UpdateFile(i, f)
			continue
		}

		f.Status = FileStatusProcessing
		f.StartedAt = time.Now()
		j.UpdateFile(i, f)

		w, err := decoder.Decode(ctx, f.Path)
		if err != nil {
			f.Status = FileStatusFailed
			if j.DecodePolicy.SkipsFailures() {
				f.Status = FileStatusSkipped
			}
			f.Error = err.Error()
			f.CompletedAt = time.Now()
			j.UpdateFile(i, f)
			s.logger.Warn("decode failed",
				slog.String("job_id", j.ID),
				slog.String("path", f.Path),
				slog.String("status", string(f.Status)),
				slog.String("error", err.Error()),
			)
			continue
		}
		waveforms[i] = w
		j.UpdateFile(i, f)
	}
	return waveforms
}

// runTasks slices every decoded waveform through the runner. The returned
// map is keyed by file index.
func (s *SliceService) runTasks(ctx context.Context, j *Job, runner Runner, waveforms []*slicer.Waveform) map[int]batch.Result {
	var tasks []batch.Task
	var indices []int
	for i, w := range waveforms {
		if w == nil {
			continue
		}
		tasks = append(tasks, batch.Task{
			ID:       fmt.Sprintf("%s/%d", j.ID, i),
			Waveform: w,
			Config:   j.Params,
		})
		indices = append(indices, i)
	}

	byFile := make(map[int]batch.Result, len(tasks))
	if len(tasks) == 0 {
		return byFile
	}
	for pos, res := range runner.Run(ctx, tasks) {
		byFile[indices[pos]] = res
	}
	return byFile
}

// exportResults writes segments for every successful slice and settles
// each file's final status.
func (s *SliceService) exportResults(ctx context.Context, j *Job, waveforms []*slicer.Waveform, results map[int]batch.Result) {
	done := 0
	for i := range j.Files {
		f := j.Files[i]

		res, ok := results[i]
		if !ok {
			// Decode already settled this file, or it was skipped.
			if f.Status == FileStatusProcessing {
				f.Status = FileStatusSkipped
				j.UpdateFile(i, f)
			}
			done++
			j.UpdateProgress(done * 100 / len(j.Files))
			continue
		}

		switch {
		case errors.Is(res.Err, batch.ErrCancelled):
			f.Status = FileStatusSkipped
		case res.Err != nil:
			f.Status = FileStatusFailed
			f.Error = res.Err.Error()
			f.CompletedAt = time.Now()
		default:
			// A slice that finished before a mid-batch cancel still gets
			// exported; only work that never ran is skipped.
			records, err := s.exporter.Export(context.WithoutCancel(ctx), f.Path, waveforms[i], res.Slice, j.Export)
			if err != nil {
				f.Status = FileStatusFailed
				f.Error = err.Error()
			} else {
				f.Status = FileStatusCompleted
				f.Records = records
			}
			f.CompletedAt = time.Now()
		}
		j.UpdateFile(i, f)

		done++
		j.UpdateProgress(done * 100 / len(j.Files))
	}
}

// finish settles the job's terminal status. A job completes as long as it
// ran to the end, even when individual files failed; it fails only when
// every file failed.
func (s *SliceService) finish(j *Job, cancelled bool) {
	if cancelled {
		if err := j.Cancel(); err != nil {
			s.logger.Error("cancel transition failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
		}
		return
	}

	failed := 0
	for _, f := range j.Files {
		if f.Status == FileStatusFailed {
			failed++
		}
	}
	if failed == len(j.Files) {
		_ = j.Fail("all files failed")
		return
	}
	if err := j.Complete(); err != nil {
		s.logger.Error("complete transition failed", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
}
