// Package job provides the Job aggregate for batch slicing jobs.
// A job groups one or more audio sources that are sliced into segments
// independently; its state machine tracks the batch as a whole.
package job

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maauso/voxslice/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job's sources are being sliced.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates at least one source was sliced successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates every source failed or the job could not start.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was manually cancelled.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job exceeded its processing deadline.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrUnknownStatus is returned by ParseStatus for names that are not a Status.
var ErrUnknownStatus = errors.New("unknown job status")

// ParseStatus converts a status name such as "COMPLETED" to a Status.
// Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusInQueue, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
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

// SourceStatus represents the status of a single input file within a job.
type SourceStatus string

const (
	// SourceStatusPending indicates the source is waiting to be processed.
	SourceStatusPending SourceStatus = "PENDING"
	// SourceStatusProcessing indicates the source is currently being sliced.
	SourceStatusProcessing SourceStatus = "PROCESSING"
	// SourceStatusCompleted indicates the source was sliced successfully.
	SourceStatusCompleted SourceStatus = "COMPLETED"
	// SourceStatusFailed indicates the source could not be sliced.
	SourceStatusFailed SourceStatus = "FAILED"
)

// SegmentRef points at one written segment of a source.
type SegmentRef struct {
	// Path is the local path of the WAV file.
	Path string
	// URL is the S3 URL when the job publishes to S3.
	URL string
	// Start is the first sample of the segment in the source signal.
	Start int
	// End is one past the last sample of the segment in the source signal.
	End int
}

// Source is one input audio file of a job.
type Source struct {
	// Index is the position of this source in the request.
	Index int
	// Name is the client supplied file name, if any.
	Name string
	// Status is the current processing status.
	Status SourceStatus
	// InputPath is the path of the decoded upload on disk.
	InputPath string
	// Segments lists the written segments in signal order.
	Segments []SegmentRef
	// Error contains any error message if processing failed.
	Error string
	// StartedAt is when source processing started.
	StartedAt time.Time
	// CompletedAt is when source processing finished.
	CompletedAt time.Time
}

// Job represents a batch slicing job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Sources contains the input files being sliced.
	Sources []Source
	// Progress is the percentage of completion (0-100).
	Progress int
	// Error contains any error message if the job failed.
	Error string
	// OutputDir is the working directory holding all of the job's files.
	OutputDir string
	// PushToS3 indicates whether segments are uploaded to S3.
	PushToS3 bool
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Sources:   make([]Source, 0),
		CreatedAt: now,
		UpdatedAt: now,
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

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
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

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetSources sets the sources for this job.
func (j *Job) SetSources(sources []Source) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Sources = sources
	j.UpdatedAt = time.Now()
}

// UpdateSource replaces the source at index and recomputes progress as the
// share of sources that reached a final status.
func (j *Job) UpdateSource(index int, src Source) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index < 0 || index >= len(j.Sources) {
		return
	}
	j.Sources[index] = src

	done := 0
	for _, s := range j.Sources {
		if s.Status == SourceStatusCompleted || s.Status == SourceStatusFailed {
			done++
		}
	}
	j.Progress = done * 100 / len(j.Sources)
	j.UpdatedAt = time.Now()
}

// SetOutputDir records the job's working directory.
func (j *Job) SetOutputDir(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputDir = dir
	j.UpdatedAt = time.Now()
}

// FailedSources returns how many sources ended in SourceStatusFailed.
func (j *Job) FailedSources() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, s := range j.Sources {
		if s.Status == SourceStatusFailed {
			n++
		}
	}
	return n
}

// SegmentCount returns the number of segments written across all sources.
func (j *Job) SegmentCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, s := range j.Sources {
		n += len(s.Segments)
	}
	return n
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	sources := make([]Source, len(j.Sources))
	for i, s := range j.Sources {
		sources[i] = s
		sources[i].Segments = append([]SegmentRef(nil), s.Segments...)
	}

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Sources:     sources,
		Progress:    j.Progress,
		Error:       j.Error,
		OutputDir:   j.OutputDir,
		PushToS3:    j.PushToS3,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
