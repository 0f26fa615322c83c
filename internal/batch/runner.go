package batch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/slicekit/slicekit/internal/slicer"
)

// Runner executes batches of slicing tasks in a configured mode with a
// fixed worker count. A Runner holds no per-batch state and is safe for
// concurrent use.
type Runner struct {
	mode        Mode
	workers     int
	workerCmd   string
	emptyPolicy slicer.EmptyPolicy
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger used for per-task progress.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithWorkerCommand sets the worker binary used in ModeProcesses.
// Defaults to "sliceworker" resolved via PATH.
func WithWorkerCommand(cmd string) RunnerOption {
	return func(r *Runner) {
		if cmd != "" {
			r.workerCmd = cmd
		}
	}
}

// WithEmptyPolicy sets how zero-sample waveforms are handled by every task.
func WithEmptyPolicy(p slicer.EmptyPolicy) RunnerOption {
	return func(r *Runner) { r.emptyPolicy = p }
}

// NewRunner creates a Runner. The worker count applies to the parallel
// modes; serial mode ignores it.
func NewRunner(mode Mode, workers int, opts ...RunnerOption) (*Runner, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	r := &Runner{
		mode:      mode,
		workers:   workers,
		workerCmd: "sliceworker",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes all tasks and returns one Result per task, in the original
// task order regardless of completion order. Cancellation is cooperative
// and coarse-grained: the context is checked before each task starts, and a
// cancelled batch reports not-yet-started tasks with ErrCancelled while
// in-flight tasks run to completion. Run imposes no per-task timeout.
func (r *Runner) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))

	if r.mode == ModeSerial {
		for i, t := range tasks {
			results[i] = r.runOne(ctx, i, t)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, t := range tasks {
		g.Go(func() error {
			results[i] = r.runOne(ctx, i, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, index int, t Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{ID: t.ID, Index: index, Err: fmt.Errorf("%w: %w", ErrCancelled, err)}
	}

	var (
		res *slicer.SliceResult
		err error
	)
	if r.mode == ModeProcesses {
		res, err = r.runInWorker(t)
	} else {
		res, err = r.execute(t)
	}

	if err != nil {
		r.logger.Warn("slicing task failed",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	} else {
		r.logger.Debug("slicing task completed",
			slog.String("task_id", t.ID),
			slog.Int("segments", len(res.Segments)),
		)
	}
	return Result{ID: t.ID, Index: index, Slice: res, Err: err}
}

// execute runs the pipeline in-process. Panics are confined to the task
// that raised them.
func (r *Runner) execute(t Task) (res *slicer.SliceResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("batch: task %q panicked: %v", t.ID, p)
		}
	}()

	s, err := slicer.New(t.Config, slicer.WithEmptyPolicy(r.emptyPolicy))
	if err != nil {
		return nil, err
	}
	return s.Slice(t.Waveform)
}
