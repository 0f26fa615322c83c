// Package job provides the SliceJob aggregate for managing audio slicing
// jobs. It includes the Job entity with state machine transitions, per-file
// result tracking, and repository interfaces for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/slicekit/slicekit/internal/batch"
	"github.com/slicekit/slicekit/internal/decode"
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/job/id"
	"github.com/slicekit/slicekit/internal/slicer"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for an available worker.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being processed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the job finished. Individual files may
	// still have failed; check the per-file results.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job as a whole could not run.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// FileStatus represents the status of a single input file.
type FileStatus string

const (
	// FileStatusPending indicates the file is waiting to be processed.
	FileStatusPending FileStatus = "PENDING"
	// FileStatusProcessing indicates the file is currently being processed.
	FileStatusProcessing FileStatus = "PROCESSING"
	// FileStatusCompleted indicates the file was sliced successfully.
	FileStatusCompleted FileStatus = "COMPLETED"
	// FileStatusFailed indicates decoding or slicing failed for this file.
	FileStatusFailed FileStatus = "FAILED"
	// FileStatusSkipped indicates the file was never started because the
	// job was cancelled first.
	FileStatusSkipped FileStatus = "SKIPPED"
)

// FileResult tracks one input file through the slicing pipeline.
type FileResult struct {
	// Path is the input audio file.
	Path string
	// Status is the current processing status.
	Status FileStatus
	// Error contains any error message if processing failed.
	Error string
	// Records describes the exported segments, in boundary order.
	Records []export.Record
	// StartedAt is when processing of this file started.
	StartedAt time.Time
	// CompletedAt is when processing of this file finished.
	CompletedAt time.Time
}

// Job represents an audio slicing job aggregate. One job covers a batch of
// input files processed with a shared parameter set.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Params are the slicing parameters applied to every file.
	Params slicer.Config
	// Mode selects the batch execution strategy.
	Mode batch.Mode
	// Workers bounds concurrent file processing.
	Workers int
	// DecodePolicy selects the decode backends and failure handling.
	DecodePolicy decode.Policy
	// Export controls segment naming and manifest output.
	Export export.Options
	// Files tracks per-input results, in input order.
	Files []FileResult
	// Progress is the percentage of files finished (0-100).
	Progress int
	// Error contains any error message if the job failed as a whole.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job for the given input files with a generated ID and
// initial IN_QUEUE status.
func New(paths []string) *Job {
	return NewWithID(id.Generate(), paths)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE
// status. Useful for testing or when the ID is externally generated.
func NewWithID(jobID string, paths []string) *Job {
	now := time.Now()
	files := make([]FileResult, len(paths))
	for i, p := range paths {
		files[i] = FileResult{Path: p, Status: FileStatusPending}
	}
	return &Job{
		ID:           jobID,
		Status:       StatusInQueue,
		Mode:         batch.ModeSerial,
		Workers:      1,
		DecodePolicy: decode.PolicyChain,
		Files:        files,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateFile updates a specific file result by index.
func (j *Job) UpdateFile(index int, result FileResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index >= 0 && index < len(j.Files) {
		j.Files[index] = result
		j.UpdatedAt = time.Now()
	}
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	files := make([]FileResult, len(j.Files))
	copy(files, j.Files)
	for i := range files {
		if len(files[i].Records) > 0 {
			records := make([]export.Record, len(files[i].Records))
			copy(records, files[i].Records)
			files[i].Records = records
		}
	}

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Params:       j.Params,
		Mode:         j.Mode,
		Workers:      j.Workers,
		DecodePolicy: j.DecodePolicy,
		Export:       j.Export,
		Files:        files,
		Progress:     j.Progress,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
