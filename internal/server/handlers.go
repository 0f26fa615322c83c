package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/slicekit/slicekit/internal/batch"
	"github.com/slicekit/slicekit/internal/decode"
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/job"
	"github.com/slicekit/slicekit/internal/slicer"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.SliceService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.SliceService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	// Pre-seed the slicing defaults so a partial params object merges into
	// them instead of zeroing the omitted fields.
	defaults := slicer.DefaultConfig()
	req := CreateJobRequest{Params: &defaults}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	params := slicer.DefaultConfig()
	if req.Params != nil {
		params = *req.Params
	}

	input := job.SliceInput{
		Paths:        req.Paths,
		Params:       params,
		Mode:         batch.Mode(req.Mode),
		Workers:      req.Workers,
		DecodePolicy: decode.Policy(req.DecodePolicy),
		Export: export.Options{
			Prefix:    req.Export.Prefix,
			Suffix:    req.Export.Suffix,
			Timestamp: req.Export.Timestamp,
			Manifest:  export.ManifestFormat(req.Export.Manifest),
			UploadS3:  req.Export.UploadS3,
		},
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		var cfgErr *slicer.ConfigError
		if errors.As(err, &cfgErr) || errors.Is(err, batch.ErrUnknownMode) || errors.Is(err, decode.ErrUnknownPolicy) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PARAMETERS")
			return
		}
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if processErr := h.service.Process(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("files", len(req.Paths)),
		slog.String("mode", string(createdJob.Mode)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelJob handles DELETE /jobs/{id} requests. Cancellation is
// cooperative: a running job stops between files, so the response reports
// the job's status at the time of the request.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.Cancel(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		if errors.Is(err, job.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, "job already finished", "JOB_ALREADY_FINISHED")
			return
		}
		h.logger.Error("failed to cancel job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel job", "JOB_CANCEL_FAILED")
		return
	}

	h.logger.Info("job cancellation requested", slog.String("job_id", jobID))

	current, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		writeJSON(w, http.StatusAccepted, CreateJobResponse{ID: jobID})
		return
	}
	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     current.ID,
		Status: string(current.Status),
	})
}

func toJobResponse(j *job.Job) JobResponse {
	files := make([]FileResponse, len(j.Files))
	for i, f := range j.Files {
		files[i] = FileResponse{
			Path:    f.Path,
			Status:  string(f.Status),
			Error:   f.Error,
			Records: f.Records,
		}
	}
	return JobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Mode:         string(j.Mode),
		Workers:      j.Workers,
		DecodePolicy: string(j.DecodePolicy),
		Progress:     j.Progress,
		Error:        j.Error,
		Files:        files,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
