package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maauso/voxslice/internal/audio"
	"github.com/maauso/voxslice/internal/storage"
)

// Static errors returned by SliceService.
var (
	// ErrNoSources is returned when a job is created without input files.
	ErrNoSources = errors.New("job: at least one source is required")
	// ErrInvalidSource is returned when a source payload cannot be decoded.
	ErrInvalidSource = errors.New("job: invalid source")
	// ErrS3NotEnabled is returned when a job asks for S3 publication but
	// the service runs without S3.
	ErrS3NotEnabled = errors.New("job: S3 publication is not enabled")
	// ErrJobInProgress is returned when deleting a job that is still running.
	ErrJobInProgress = errors.New("job: job is still in progress")
	// ErrAllSourcesFailed is returned when no source of a job could be sliced.
	ErrAllSourcesFailed = errors.New("job: all sources failed")
)

// SourceInput is one audio file of a slicing request.
type SourceInput struct {
	// Name is an optional file name used to label the output segments.
	Name string
	// AudioBase64 is the base64-encoded audio file, in any format the
	// configured loader understands.
	AudioBase64 string
}

// SlicerOverrides replaces individual slicer parameters for one job.
// Nil fields keep the service default.
type SlicerOverrides struct {
	ThresholdDB   *float64
	MinLengthMs   *int
	MinIntervalMs *int
	HopSizeMs     *int
	MaxSilKeptMs  *int
}

// apply returns base with the non-nil overrides set.
func (o *SlicerOverrides) apply(base audio.SlicerOpts) audio.SlicerOpts {
	if o == nil {
		return base
	}
	if o.ThresholdDB != nil {
		base.ThresholdDB = *o.ThresholdDB
	}
	if o.MinLengthMs != nil {
		base.MinLengthMs = *o.MinLengthMs
	}
	if o.MinIntervalMs != nil {
		base.MinIntervalMs = *o.MinIntervalMs
	}
	if o.HopSizeMs != nil {
		base.HopSizeMs = *o.HopSizeMs
	}
	if o.MaxSilKeptMs != nil {
		base.MaxSilKeptMs = *o.MaxSilKeptMs
	}
	return base
}

// SliceInput contains the input parameters for a slicing job.
type SliceInput struct {
	// Sources are the audio files to slice, in order.
	Sources []SourceInput
	// PushToS3 publishes every written segment to S3.
	PushToS3 bool
	// Slicer optionally overrides the default slicer parameters.
	Slicer *SlicerOverrides
}

// SliceOutput contains the result of a slicing job.
type SliceOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// Sources holds the per-source results.
	Sources []Source
	// Error contains any error message if the job failed.
	Error string
}

// SliceService orchestrates batch slicing jobs. Each source of a job is
// decoded to disk, cut into segments by an audio.Splitter and optionally
// published to S3. Sources run concurrently up to maxConcurrentSources;
// a failing source does not stop the others.
type SliceService struct {
	repo     Repository
	splitter audio.Splitter
	store    storage.Storage
	logger   *slog.Logger

	splitOpts            audio.SplitOpts
	maxConcurrentSources int
	jobTimeout           time.Duration
	s3Enabled            bool
}

// ServiceOption is a function that configures a SliceService.
type ServiceOption func(*SliceService)

// WithSplitOpts sets the default slicing and normalization parameters.
func WithSplitOpts(opts audio.SplitOpts) ServiceOption {
	return func(s *SliceService) {
		s.splitOpts = opts
	}
}

// WithMaxConcurrentSources limits how many sources of one job are sliced
// in parallel. Values below 1 are ignored.
func WithMaxConcurrentSources(n int) ServiceOption {
	return func(s *SliceService) {
		if n > 0 {
			s.maxConcurrentSources = n
		}
	}
}

// WithJobTimeout bounds the processing time of a job. Zero disables the limit.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *SliceService) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// WithS3Publishing allows jobs to request S3 publication.
func WithS3Publishing(enabled bool) ServiceOption {
	return func(s *SliceService) {
		s.s3Enabled = enabled
	}
}

// NewSliceService creates a new SliceService.
func NewSliceService(repo Repository, splitter audio.Splitter, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *SliceService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SliceService{
		repo:                 repo,
		splitter:             splitter,
		store:                store,
		logger:               logger,
		splitOpts:            audio.DefaultSplitOpts(32000),
		maxConcurrentSources: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// splitOptsFor resolves and validates the split options of one job.
func (s *SliceService) splitOptsFor(input SliceInput) (audio.SplitOpts, error) {
	opts := s.splitOpts
	opts.Slicer = input.Slicer.apply(opts.Slicer)
	if _, err := audio.NewSlicer(opts.Slicer); err != nil {
		return audio.SplitOpts{}, err
	}
	if err := opts.Normalize.Validate(); err != nil {
		return audio.SplitOpts{}, err
	}
	return opts, nil
}

// CreateJob validates input and persists a new job in IN_QUEUE status.
// Invalid slicer overrides are rejected here, before any work is queued.
func (s *SliceService) CreateJob(ctx context.Context, input SliceInput) (*Job, error) {
	if len(input.Sources) == 0 {
		return nil, ErrNoSources
	}
	if input.PushToS3 && !s.s3Enabled {
		return nil, ErrS3NotEnabled
	}
	if _, err := s.splitOptsFor(input); err != nil {
		return nil, err
	}

	job := New()
	job.PushToS3 = input.PushToS3

	sources := make([]Source, len(input.Sources))
	for i, in := range input.Sources {
		sources[i] = Source{Index: i, Name: in.Name, Status: SourceStatusPending}
	}
	job.SetSources(sources)

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("sources", len(sources)),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *SliceService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns the jobs matching filter, oldest first.
func (s *SliceService) ListJobs(ctx context.Context, filter ListFilter) ([]*Job, error) {
	return s.repo.List(ctx, filter)
}

// DeleteJob removes a finished job together with its files and any
// published S3 objects.
func (s *SliceService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.IsTerminal() {
		return ErrJobInProgress
	}

	var keys []string
	paths := make([]string, 0, len(job.Sources)+1)
	for _, src := range job.Sources {
		if src.InputPath != "" {
			paths = append(paths, src.InputPath)
		}
		for _, seg := range src.Segments {
			if seg.URL != "" {
				keys = append(keys, objectKey(job.ID, seg.Path))
			}
		}
	}
	if job.OutputDir != "" {
		paths = append(paths, job.OutputDir)
	}

	if len(keys) > 0 {
		if err := s.store.DeleteFromS3(ctx, keys); err != nil {
			return fmt.Errorf("delete published segments: %w", err)
		}
	}
	if err := s.store.CleanupTemp(ctx, paths); err != nil {
		return fmt.Errorf("delete job files: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("job deleted",
		slog.String("job_id", id),
		slog.Int("files", len(paths)),
		slog.Int("s3_objects", len(keys)),
	)
	return nil
}

// Process creates a job and runs it to completion.
func (s *SliceService) Process(ctx context.Context, input SliceInput) (*SliceOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID, input)
}

// ProcessExistingJob runs a job previously created with CreateJob.
// The returned output is set whenever the job reached a terminal state;
// the error is ErrAllSourcesFailed when no source could be sliced.
func (s *SliceService) ProcessExistingJob(ctx context.Context, jobID string, input SliceInput) (*SliceOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	s.save(ctx, job)

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	logger := s.logger.With(slog.String("job_id", job.ID))
	started := time.Now()

	opts, err := s.splitOptsFor(input)
	if err != nil {
		return s.failJob(ctx, job, err)
	}
	workDir, err := s.store.WorkDir(ctx, path.Join("jobs", job.ID))
	if err != nil {
		return s.failJob(ctx, job, err)
	}
	job.SetOutputDir(workDir)
	s.save(ctx, job)

	logger.Info("processing job",
		slog.Int("sources", len(input.Sources)),
		slog.Int("max_concurrent_sources", s.maxConcurrentSources),
	)

	sem := make(chan struct{}, s.maxConcurrentSources)
	var wg sync.WaitGroup

	for i, in := range input.Sources {
		wg.Add(1)
		go func(index int, in SourceInput) {
			defer wg.Done()

			src := Source{Index: index, Name: in.Name}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				src.Status = SourceStatusFailed
				src.Error = ctx.Err().Error()
				job.UpdateSource(index, src)
				s.save(ctx, job)
				return
			}

			src.Status = SourceStatusProcessing
			src.StartedAt = time.Now()
			job.UpdateSource(index, src)
			s.save(ctx, job)

			inputPath, segments, err := s.sliceSource(ctx, job.ID, index, in, opts, job.PushToS3)
			src.InputPath = inputPath
			src.Segments = segments
			src.CompletedAt = time.Now()
			if err != nil {
				src.Status = SourceStatusFailed
				src.Error = err.Error()
				logger.Error("source failed",
					slog.Int("source", index),
					slog.String("name", in.Name),
					slog.String("error", err.Error()),
				)
			} else {
				src.Status = SourceStatusCompleted
				logger.Info("source sliced",
					slog.Int("source", index),
					slog.String("name", in.Name),
					slog.Int("segments", len(src.Segments)),
					slog.Duration("elapsed", src.CompletedAt.Sub(src.StartedAt)),
				)
			}
			job.UpdateSource(index, src)
			s.save(ctx, job)
		}(i, in)
	}
	wg.Wait()

	failed := job.FailedSources()
	var procErr error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		_ = job.Timeout()
	case errors.Is(ctx.Err(), context.Canceled):
		_ = job.Cancel()
	case failed == len(input.Sources):
		procErr = ErrAllSourcesFailed
		_ = job.Fail(fmt.Sprintf("all %d sources failed", failed))
	default:
		_ = job.Complete()
	}
	s.save(ctx, job)

	logger.Info("job finished",
		slog.String("status", string(job.GetStatus())),
		slog.Int("failed_sources", failed),
		slog.Int("segments", job.SegmentCount()),
		slog.Duration("elapsed", time.Since(started)),
	)

	return outputOf(job), procErr
}

// sliceSource decodes one source to disk, slices it into the job's work
// directory and publishes the segments when requested. Segments written
// before a publication error are still returned so they can be cleaned up.
func (s *SliceService) sliceSource(ctx context.Context, jobID string, index int, in SourceInput, opts audio.SplitOpts, push bool) (string, []SegmentRef, error) {
	data, err := base64.StdEncoding.DecodeString(in.AudioBase64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: decode audio: %v", ErrInvalidSource, err)
	}

	inputPath, err := s.store.SaveTemp(ctx, fmt.Sprintf("%s_source_%03d", jobID, index), bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("save source: %w", err)
	}

	outDir, err := s.store.WorkDir(ctx, path.Join("jobs", jobID, fmt.Sprintf("%03d", index)))
	if err != nil {
		return inputPath, nil, fmt.Errorf("create output directory: %w", err)
	}

	opts.Prefix = segmentPrefix(index, in.Name)
	segments, err := s.splitter.Split(ctx, inputPath, outDir, opts)
	if err != nil {
		return inputPath, nil, fmt.Errorf("split audio: %w", err)
	}

	refs := make([]SegmentRef, len(segments))
	for i, seg := range segments {
		refs[i] = SegmentRef{Path: seg.Path, Start: seg.Start, End: seg.End}
	}
	if !push {
		return inputPath, refs, nil
	}

	for i := range refs {
		url, err := s.publish(ctx, jobID, refs[i].Path)
		if err != nil {
			return inputPath, refs, fmt.Errorf("publish %s: %w", filepath.Base(refs[i].Path), err)
		}
		refs[i].URL = url
	}
	return inputPath, refs, nil
}

func (s *SliceService) publish(ctx context.Context, jobID, segPath string) (string, error) {
	f, err := s.store.LoadTemp(ctx, segPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return s.store.UploadToS3(ctx, objectKey(jobID, segPath), f)
}

// failJob marks the job FAILED before any source ran.
func (s *SliceService) failJob(ctx context.Context, job *Job, cause error) (*SliceOutput, error) {
	_ = job.Fail(cause.Error())
	s.save(ctx, job)
	s.logger.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("error", cause.Error()),
	)
	return outputOf(job), cause
}

// save persists job state. Progress updates are best effort: they are
// logged and otherwise ignored, and they survive context cancellation so
// the final state is always recorded.
func (s *SliceService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warn("failed to save job state",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

func outputOf(job *Job) *SliceOutput {
	c := job.Clone()
	return &SliceOutput{
		JobID:   c.ID,
		Status:  c.Status,
		Sources: c.Sources,
		Error:   c.Error,
	}
}

// objectKey returns the S3 key of a segment: <jobID>/<file name>.
func objectKey(jobID, segPath string) string {
	return jobID + "/" + filepath.Base(segPath)
}

// segmentPrefix builds a file name prefix that is unique within a job:
// the zero-padded source index, followed by the sanitized file stem.
func segmentPrefix(index int, name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, stem)
	clean = strings.Trim(clean, "_")
	if len(clean) > 48 {
		clean = clean[:48]
	}
	if clean == "" {
		return fmt.Sprintf("%03d", index)
	}
	return fmt.Sprintf("%03d_%s", index, clean)
}
