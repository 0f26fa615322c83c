// Package server provides the HTTP server for the slicing API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/slicer"
)

// ExportRequest controls segment naming and manifest output.
type ExportRequest struct {
	// Prefix is prepended to segment filenames. Defaults to the source
	// file's base name.
	Prefix string `json:"prefix"`
	// Suffix is appended before the extension.
	Suffix string `json:"suffix"`
	// Timestamp adds the export start time to filenames.
	Timestamp bool `json:"timestamp"`
	// Manifest selects the manifest encoding ("csv" or "json").
	Manifest string `json:"manifest" validate:"omitempty,oneof=csv json"`
	// UploadS3 also uploads every artifact to S3.
	UploadS3 bool `json:"upload_s3"`
}

// CreateJobRequest is the HTTP request body for creating a new slicing job.
type CreateJobRequest struct {
	// Paths are the input audio files, processed in order.
	Paths []string `json:"paths" validate:"required,min=1,dive,required"`
	// Params are the slicing parameters, validated by the slicing core
	// (it owns the cross-field rules). Omitted fields leave the defaults
	// in place.
	Params *slicer.Config `json:"params" validate:"-"`
	// Mode selects the batch execution strategy.
	Mode string `json:"mode" validate:"omitempty,oneof=serial threads processes"`
	// Workers bounds concurrent file processing.
	Workers int `json:"workers" validate:"omitempty,min=1"`
	// DecodePolicy selects the decode backends and failure handling:
	// "chain" (default, ffmpeg fallback), "native" (pure-Go backends only),
	// or "skip" (undecodable files are skipped instead of failed).
	DecodePolicy string `json:"decode_policy" validate:"omitempty,oneof=chain native skip"`
	// Export controls segment naming and manifest output.
	Export ExportRequest `json:"export"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// FileResponse describes one input file's outcome.
type FileResponse struct {
	// Path is the input audio file.
	Path string `json:"path"`
	// Status is the file's processing status.
	Status string `json:"status"`
	// Error contains any error message if processing failed.
	Error string `json:"error,omitempty"`
	// Records describes the exported segments, in boundary order.
	Records []export.Record `json:"records,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Mode is the batch execution strategy.
	Mode string `json:"mode"`
	// Workers bounds concurrent file processing.
	Workers int `json:"workers"`
	// DecodePolicy is the decode policy the job runs with.
	DecodePolicy string `json:"decode_policy"`
	// Progress is the percentage of files finished (0-100).
	Progress int `json:"progress"`
	// Error contains any error message if the job failed as a whole.
	Error string `json:"error,omitempty"`
	// Files tracks per-input results, in input order.
	Files []FileResponse `json:"files"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	// Jobs holds one summary per known job.
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
