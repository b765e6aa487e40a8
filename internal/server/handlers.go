package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/voxslice/internal/audio"
	"github.com/maauso/voxslice/internal/job"
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
		enableAsyncProcess: true,
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
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input := toSliceInput(req)

	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrInvalidSlicerConfig), errors.Is(err, audio.ErrInvalidNormalizeConfig):
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_SLICER_CONFIG")
		case errors.Is(err, job.ErrNoSources):
			writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		case errors.Is(err, job.ErrS3NotEnabled):
			writeError(w, http.StatusBadRequest, err.Error(), "S3_NOT_ENABLED")
		default:
			h.logger.Error("failed to create job",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		}
		return
	}

	// The request context ends with the response; processing must outlive it.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string, inp job.SliceInput) {
			_, processErr := h.service.ProcessExistingJob(ctx, jobID, inp)
			if processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID, input)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("sources", len(req.Sources)),
		slog.Bool("push_to_s3", req.PushToS3),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
// With ?include_audio=true the WAV content of every local segment is
// embedded as base64.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	includeAudio := false
	if v := r.URL.Query().Get("include_audio"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "include_audio must be a boolean", "INVALID_QUERY")
			return
		}
		includeAudio = b
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

	writeJSON(w, http.StatusOK, h.jobResponse(foundJob, includeAudio))
}

// ListJobs handles GET /jobs requests.
// ?status=RUNNING,IN_QUEUE restricts the listing to those states.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var filter job.ListFilter
	if v := r.URL.Query().Get("status"); v != "" {
		for _, name := range strings.Split(v, ",") {
			status, err := job.ParseStatus(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), "INVALID_QUERY")
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	jobs, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{
			ID:        j.ID,
			Status:    string(j.Status),
			Progress:  j.Progress,
			Sources:   len(j.Sources),
			Segments:  j.SegmentCount(),
			CreatedAt: j.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id} requests.
// It removes the job, its segment files and any published S3 objects.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	if err := h.service.DeleteJob(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		case errors.Is(err, job.ErrJobInProgress):
			writeError(w, http.StatusConflict, "job is still in progress", "JOB_IN_PROGRESS")
		default:
			h.logger.Error("failed to delete job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete job", "JOB_DELETE_FAILED")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) jobResponse(j *job.Job, includeAudio bool) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Error:     j.Error,
		PushToS3:  j.PushToS3,
		Sources:   make([]SourceResponse, 0, len(j.Sources)),
		CreatedAt: j.CreatedAt,
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt.UTC().Truncate(time.Millisecond)
		resp.CompletedAt = &completed
	}

	for _, src := range j.Sources {
		sr := SourceResponse{
			Index:    src.Index,
			Name:     src.Name,
			Status:   string(src.Status),
			Error:    src.Error,
			Segments: make([]SegmentResponse, 0, len(src.Segments)),
		}
		for _, seg := range src.Segments {
			segResp := SegmentResponse{
				File:  filepath.Base(seg.Path),
				Start: seg.Start,
				End:   seg.End,
				URL:   seg.URL,
			}
			if includeAudio {
				data, err := os.ReadFile(seg.Path) // #nosec G304 - path was written by the service
				if err != nil {
					// Don't fail the request, just log and omit the audio
					h.logger.Error("failed to read segment",
						slog.String("job_id", j.ID),
						slog.String("path", seg.Path),
						slog.String("error", err.Error()),
					)
				} else {
					segResp.AudioBase64 = base64.StdEncoding.EncodeToString(data)
				}
			}
			sr.Segments = append(sr.Segments, segResp)
		}
		resp.Sources = append(resp.Sources, sr)
	}
	return resp
}

func toSliceInput(req CreateJobRequest) job.SliceInput {
	input := job.SliceInput{
		Sources:  make([]job.SourceInput, len(req.Sources)),
		PushToS3: req.PushToS3,
	}
	for i, src := range req.Sources {
		input.Sources[i] = job.SourceInput{Name: src.Name, AudioBase64: src.AudioBase64}
	}
	if req.Slicer != nil {
		input.Slicer = &job.SlicerOverrides{
			ThresholdDB:   req.Slicer.ThresholdDB,
			MinLengthMs:   req.Slicer.MinLengthMs,
			MinIntervalMs: req.Slicer.MinIntervalMs,
			HopSizeMs:     req.Slicer.HopSizeMs,
			MaxSilKeptMs:  req.Slicer.MaxSilKeptMs,
		}
	}
	return input
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
