package batch

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/slicekit/slicekit/internal/slicer"
)

// Worker wire protocol for ModeProcesses. Tasks and results cross the
// process boundary fully self-contained: the parent writes one gob-encoded
// workerTask to the child's stdin and reads one gob-encoded workerResult
// from its stdout. No memory is shared.

type workerTask struct {
	ID          string
	Samples     []float64
	SampleRate  int
	Config      slicer.Config
	EmptyPolicy int
}

type workerResult struct {
	Slice   *slicer.SliceResult
	ErrKind string
	ErrMsg  string
}

// Error kinds carried over the process boundary so the parent can rebuild
// a typed failure.
const (
	errKindConfig    = "config"
	errKindEmpty     = "empty"
	errKindInvariant = "invariant"
	errKindInternal  = "internal"
)

// runInWorker executes one task in a worker subprocess. The child is
// deliberately not bound to the batch context: cancellation only prevents
// tasks from starting, it never kills one midway.
func (r *Runner) runInWorker(t Task) (*slicer.SliceResult, error) {
	wt := workerTask{
		ID:          t.ID,
		Config:      t.Config,
		EmptyPolicy: int(r.emptyPolicy),
	}
	if t.Waveform != nil {
		wt.Samples = t.Waveform.Samples
		wt.SampleRate = t.Waveform.SampleRate
	}

	var in, out bytes.Buffer
	if err := gob.NewEncoder(&in).Encode(wt); err != nil {
		return nil, fmt.Errorf("batch: encode worker task: %w", err)
	}

	cmd := exec.Command(r.workerCmd)
	cmd.Stdin = &in
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("batch: worker process: %w", err)
	}

	var wr workerResult
	if err := gob.NewDecoder(&out).Decode(&wr); err != nil {
		return nil, fmt.Errorf("batch: decode worker result: %w", err)
	}
	if wr.ErrKind != "" {
		return nil, decodeWorkerError(wr.ErrKind, wr.ErrMsg)
	}
	return wr.Slice, nil
}

// ServeWorker is the worker-side half of the protocol: it reads one task,
// runs the pipeline, and writes the result. It is called by the sliceworker
// binary with stdin/stdout. A task failure is reported inside the result;
// the returned error covers protocol failures only.
func ServeWorker(in io.Reader, out io.Writer) error {
	var wt workerTask
	if err := gob.NewDecoder(in).Decode(&wt); err != nil {
		return fmt.Errorf("batch: decode worker task: %w", err)
	}

	var wr workerResult
	res, err := runWorkerTask(wt)
	if err != nil {
		wr.ErrKind, wr.ErrMsg = encodeWorkerError(err)
	} else {
		wr.Slice = res
	}

	if err := gob.NewEncoder(out).Encode(wr); err != nil {
		return fmt.Errorf("batch: encode worker result: %w", err)
	}
	return nil
}

func runWorkerTask(wt workerTask) (res *slicer.SliceResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("batch: task %q panicked: %v", wt.ID, p)
		}
	}()

	s, err := slicer.New(wt.Config, slicer.WithEmptyPolicy(slicer.EmptyPolicy(wt.EmptyPolicy)))
	if err != nil {
		return nil, err
	}
	return s.Slice(&slicer.Waveform{Samples: wt.Samples, SampleRate: wt.SampleRate})
}

func encodeWorkerError(err error) (kind, msg string) {
	var cfgErr *slicer.ConfigError
	var invErr *slicer.InvariantError
	switch {
	case errors.As(err, &cfgErr):
		return errKindConfig, err.Error()
	case errors.Is(err, slicer.ErrEmptyWaveform):
		return errKindEmpty, err.Error()
	case errors.As(err, &invErr):
		return errKindInvariant, err.Error()
	default:
		return errKindInternal, err.Error()
	}
}

func decodeWorkerError(kind, msg string) error {
	switch kind {
	case errKindConfig:
		return &slicer.ConfigError{Err: errors.New(msg)}
	case errKindEmpty:
		return fmt.Errorf("%w: %s", slicer.ErrEmptyWaveform, msg)
	case errKindInvariant:
		return &slicer.InvariantError{Detail: msg}
	default:
		return errors.New(msg)
	}
}
