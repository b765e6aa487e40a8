// Package server provides the HTTP server for the voxslice API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new slicing job.
type CreateJobRequest struct {
	// Sources are the audio files to slice.
	Sources []SourceRequest `json:"sources" validate:"required,min=1,max=32,dive"`
	// PushToS3 indicates whether to upload every segment to S3.
	PushToS3 bool `json:"push_to_s3"`
	// Slicer optionally overrides the server's slicing parameters.
	Slicer *SlicerRequest `json:"slicer,omitempty"`
}

// SourceRequest is one audio file of a CreateJobRequest.
type SourceRequest struct {
	// Name is an optional file name used to label the segments.
	Name string `json:"name,omitempty" validate:"omitempty,max=255"`
	// AudioBase64 is the base64-encoded audio file.
	AudioBase64 string `json:"audio_base64" validate:"required,base64"`
}

// SlicerRequest overrides individual slicing parameters.
// Omitted fields keep the server defaults.
type SlicerRequest struct {
	ThresholdDB   *float64 `json:"threshold_db,omitempty" validate:"omitempty,lt=0"`
	MinLengthMs   *int     `json:"min_length_ms,omitempty" validate:"omitempty,min=1"`
	MinIntervalMs *int     `json:"min_interval_ms,omitempty" validate:"omitempty,min=1"`
	HopSizeMs     *int     `json:"hop_size_ms,omitempty" validate:"omitempty,min=1"`
	MaxSilKeptMs  *int     `json:"max_sil_kept_ms,omitempty" validate:"omitempty,min=1"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID       string           `json:"id"`
	Status   string           `json:"status"`
	Progress int              `json:"progress"`
	Error    string           `json:"error,omitempty"`
	PushToS3 bool             `json:"push_to_s3"`
	Sources  []SourceResponse `json:"sources"`
	// CreatedAt is when the job was accepted.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is set once the job reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SourceResponse reports the outcome of one source.
type SourceResponse struct {
	Index    int               `json:"index"`
	Name     string            `json:"name,omitempty"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Segments []SegmentResponse `json:"segments"`
}

// SegmentResponse describes one written segment. Start and End are
// sample offsets into the source signal.
type SegmentResponse struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	// URL is the S3 URL of the segment (if push_to_s3=true).
	URL string `json:"url,omitempty"`
	// AudioBase64 is the WAV content, only when requested with ?include_audio=true.
	AudioBase64 string `json:"audio_base64,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobSummary is the condensed form of a job used in listings.
type JobSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Sources   int       `json:"sources"`
	Segments  int       `json:"segments"`
	CreatedAt time.Time `json:"created_at"`
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
