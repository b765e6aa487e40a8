package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/voxslice/internal/audio"
	"github.com/maauso/voxslice/internal/job"
	"github.com/maauso/voxslice/internal/metrics"
	"github.com/maauso/voxslice/internal/storage"
)

// stubSplitter writes two small segment files per call.
type stubSplitter struct {
	err error
}

func (s *stubSplitter) Split(_ context.Context, _, outputDir string, opts audio.SplitOpts) ([]audio.Segment, error) {
	if s.err != nil {
		return nil, s.err
	}
	var segs []audio.Segment
	for i := 0; i < 2; i++ {
		start, end := i*16000, (i+1)*16000
		p := filepath.Join(outputDir, fmt.Sprintf("%s_%010d_%010d.wav", opts.Prefix, start, end))
		if err := os.WriteFile(p, []byte("RIFF-segment"), 0600); err != nil {
			return nil, err
		}
		segs = append(segs, audio.Segment{Path: p, Start: start, End: end, SampleRate: 32000})
	}
	return segs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestHandlers(t *testing.T, splitter audio.Splitter, opts ...HandlerOption) (*Handlers, *job.SliceService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := job.NewSliceService(job.NewMemoryRepository(), splitter, store, testLogger())

	// Processing is driven explicitly unless a test opts in.
	if len(opts) == 0 {
		opts = []HandlerOption{WithAsyncProcessing(false)}
	}
	return NewHandlers(svc, testLogger(), opts...), svc, store
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func postJob(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	bodyJSON, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// runJob creates a job through the service and processes it synchronously.
func runJob(t *testing.T, svc *job.SliceService, names ...string) string {
	t.Helper()
	input := job.SliceInput{}
	for _, n := range names {
		input.Sources = append(input.Sources, job.SourceInput{Name: n, AudioBase64: b64("audio " + n)})
	}
	out, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	return out.JobID
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestCreateJob_Success(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})

	rec := postJob(t, h.CreateJob, CreateJobRequest{
		Sources: []SourceRequest{
			{Name: "a.wav", AudioBase64: b64("a")},
			{AudioBase64: b64("b")},
		},
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp CreateJobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)

	created, err := svc.GetJob(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Len(t, created.Sources, 2)
	assert.Equal(t, "a.wav", created.Sources[0].Name)
	assert.Equal(t, job.SourceStatusPending, created.Sources[1].Status)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateJob_ValidationErrors(t *testing.T) {
	negative := -30.0
	positive := 3.0
	zero := 0

	tests := []struct {
		name string
		body CreateJobRequest
		code string
	}{
		{
			name: "no sources",
			body: CreateJobRequest{},
			code: "VALIDATION_ERROR",
		},
		{
			name: "missing audio",
			body: CreateJobRequest{Sources: []SourceRequest{{Name: "a.wav"}}},
			code: "VALIDATION_ERROR",
		},
		{
			name: "audio is not base64",
			body: CreateJobRequest{Sources: []SourceRequest{{AudioBase64: "not base64!"}}},
			code: "VALIDATION_ERROR",
		},
		{
			name: "positive threshold",
			body: CreateJobRequest{
				Sources: []SourceRequest{{AudioBase64: b64("a")}},
				Slicer:  &SlicerRequest{ThresholdDB: &positive},
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "zero hop size",
			body: CreateJobRequest{
				Sources: []SourceRequest{{AudioBase64: b64("a")}},
				Slicer:  &SlicerRequest{HopSizeMs: &zero},
			},
			code: "VALIDATION_ERROR",
		},
		{
			name: "slicer parameters out of order",
			body: CreateJobRequest{
				Sources: []SourceRequest{{AudioBase64: b64("a")}},
				Slicer: &SlicerRequest{
					ThresholdDB: &negative,
					MinLengthMs: func() *int { v := 100; return &v }(),
				},
			},
			code: "INVALID_SLICER_CONFIG",
		},
		{
			name: "s3 not enabled",
			body: CreateJobRequest{
				Sources:  []SourceRequest{{AudioBase64: b64("a")}},
				PushToS3: true,
			},
			code: "S3_NOT_ENABLED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc, _ := newTestHandlers(t, &stubSplitter{})

			rec := postJob(t, h.CreateJob, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)

			jobs, err := svc.ListJobs(context.Background(), job.ListFilter{})
			require.NoError(t, err)
			assert.Empty(t, jobs, "rejected requests must not create jobs")
		})
	}
}

func TestGetJob_Success(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	jobID := runJob(t, svc, "first take.wav", "")

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID, nil)
	req.SetPathValue("id", jobID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, jobID, resp.ID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.NotNil(t, resp.CompletedAt)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "first take.wav", resp.Sources[0].Name)
	assert.Equal(t, "COMPLETED", resp.Sources[0].Status)
	require.Len(t, resp.Sources[0].Segments, 2)
	assert.Equal(t, "000_first_take_0000000000_0000016000.wav", resp.Sources[0].Segments[0].File)
	assert.Equal(t, 16000, resp.Sources[0].Segments[1].Start)
	assert.Equal(t, 32000, resp.Sources[0].Segments[1].End)
	assert.Empty(t, resp.Sources[0].Segments[0].AudioBase64)
	assert.Equal(t, "001_0000000000_0000016000.wav", resp.Sources[1].Segments[0].File)
}

func TestGetJob_IncludeAudio(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	jobID := runJob(t, svc, "a.wav")

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID+"?include_audio=true", nil)
	req.SetPathValue("id", jobID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Sources, 1)
	for _, seg := range resp.Sources[0].Segments {
		decoded, err := base64.StdEncoding.DecodeString(seg.AudioBase64)
		require.NoError(t, err)
		assert.Equal(t, []byte("RIFF-segment"), decoded)
	}
}

func TestGetJob_InvalidQuery(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	jobID := runJob(t, svc, "a.wav")

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID+"?include_audio=maybe", nil)
	req.SetPathValue("id", jobID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUERY", decodeError(t, rec).Code)
}

func TestGetJob_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetJob_MissingID(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/", nil)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

func TestGetJob_FailedSource(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{err: audio.ErrInvalidWAV})

	out, err := svc.Process(context.Background(), job.SliceInput{
		Sources: []job.SourceInput{{Name: "broken.wav", AudioBase64: b64("x")}},
	})
	require.ErrorIs(t, err, job.ErrAllSourcesFailed)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+out.JobID, nil)
	req.SetPathValue("id", out.JobID)
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "FAILED", resp.Status)
	assert.NotEmpty(t, resp.Error)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "FAILED", resp.Sources[0].Status)
	assert.Contains(t, resp.Sources[0].Error, "invalid WAV")
	assert.Empty(t, resp.Sources[0].Segments)
}

func TestListJobs(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	first := runJob(t, svc, "a.wav", "b.wav")
	second := runJob(t, svc, "c.wav")

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()

	h.ListJobs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 2)

	byID := map[string]JobSummary{}
	for _, s := range resp.Jobs {
		byID[s.ID] = s
	}
	assert.Equal(t, 2, byID[first].Sources)
	assert.Equal(t, 4, byID[first].Segments)
	assert.Equal(t, 1, byID[second].Sources)
	assert.Equal(t, 2, byID[second].Segments)
	assert.Equal(t, "COMPLETED", byID[second].Status)
}

func TestListJobs_StatusFilter(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	done := runJob(t, svc, "a.wav")
	queued, err := svc.CreateJob(context.Background(), job.SliceInput{
		Sources: []job.SourceInput{{AudioBase64: b64("b")}},
	})
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []string
	}{
		{"completed", []string{done}},
		{"IN_QUEUE", []string{queued.ID}},
		{"IN_QUEUE,COMPLETED", []string{done, queued.ID}},
		{"FAILED", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs?status="+tt.query, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp ListJobsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			ids := []string{}
			for _, s := range resp.Jobs {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=DONE", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUERY", decodeError(t, rec).Code)
}

func TestListJobs_Empty(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":[]}`, rec.Body.String())
}

func TestDeleteJob_Success(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})
	jobID := runJob(t, svc, "a.wav")

	done, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.NotEmpty(t, done.OutputDir)
	segPath := done.Sources[0].Segments[0].Path
	require.FileExists(t, segPath)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+jobID, nil)
	req.SetPathValue("id", jobID)
	rec := httptest.NewRecorder()

	h.DeleteJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, segPath)
	assert.NoDirExists(t, done.OutputDir)

	_, err = svc.GetJob(context.Background(), jobID)
	assert.ErrorIs(t, err, job.ErrJobNotFound)
}

func TestDeleteJob_InProgress(t *testing.T) {
	h, svc, _ := newTestHandlers(t, &stubSplitter{})

	queued, err := svc.CreateJob(context.Background(), job.SliceInput{
		Sources: []job.SourceInput{{AudioBase64: b64("a")}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/jobs/"+queued.ID, nil)
	req.SetPathValue("id", queued.ID)
	rec := httptest.NewRecorder()

	h.DeleteJob(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_IN_PROGRESS", decodeError(t, rec).Code)
}

func TestDeleteJob_NotFound(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	req := httptest.NewRequest(http.MethodDelete, "/jobs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.DeleteJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
}

func TestDeleteJob_MissingID(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	rec := httptest.NewRecorder()
	h.DeleteJob(rec, httptest.NewRequest(http.MethodDelete, "/jobs/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_JOB_ID", decodeError(t, rec).Code)
}

// speechWAV returns a 10 s, 32 kHz mono WAV file with one second of
// silence starting at 5 s.
func speechWAV(t *testing.T) []byte {
	t.Helper()
	const sr = 32000
	y := make([]float64, 10*sr)
	for i := range y {
		if i >= 5*sr && i < 6*sr {
			continue
		}
		y[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sr)
	}

	path := filepath.Join(t.TempDir(), "speech.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.EncodeWAV(f, audio.ToPCM16(audio.NewMono(y, sr)), sr))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestRouter_Integration(t *testing.T) {
	reg := prometheus.NewRegistry()
	splitter := audio.NewFileSplitter(audio.NewWAVLoader(),
		audio.WithMetrics(metrics.NewMetrics(reg)),
		audio.WithLogger(testLogger()),
	)
	h, _, _ := newTestHandlers(t, splitter, WithAsyncProcessing(true))

	cfg := DefaultConfig()
	cfg.Gatherer = reg
	router := NewRouter(h, testLogger(), cfg)

	// Health
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Create
	body, err := json.Marshal(CreateJobRequest{
		Sources: []SourceRequest{{
			Name:        "speech.wav",
			AudioBase64: base64.StdEncoding.EncodeToString(speechWAV(t)),
		}},
	})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created CreateJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	// Poll until the background job finishes.
	var resp JobResponse
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/jobs/"+created.ID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		resp = JobResponse{}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			return false
		}
		return resp.Status == "COMPLETED" || resp.Status == "FAILED"
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, "COMPLETED", resp.Status)
	require.Len(t, resp.Sources, 1)
	segs := resp.Sources[0].Segments
	require.Len(t, segs, 2)
	assert.Equal(t, 0, segs[0].Start)
	assert.Equal(t, segs[0].End, segs[1].Start)
	assert.Equal(t, 320000, segs[1].End)
	assert.True(t, strings.HasPrefix(segs[0].File, "000_speech_"))

	// List
	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), created.ID)

	// Metrics
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voxslice_sources_processed_total 1")
	assert.Contains(t, rec.Body.String(), "voxslice_segments_written_total 2")

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/jobs/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})
	router := NewRouter(h, testLogger(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h, _, _ := newTestHandlers(t, &stubSplitter{})

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, testLogger(), cfg)

	// Test with allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	// Disallowed origin gets no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Test OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(testLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "/jobs", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, len("short and stout"), entry["bytes"])

	// Probe endpoints log below info.
	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	var seen string
	handler := ChainMiddleware(RequestIDMiddleware(), LoggingMiddleware(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Get(RequestIDHeader)
		}),
	)

	t.Run("generated", func(t *testing.T) {
		buf.Reset()
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

		got := rec.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, got, seen)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, got, entry["request_id"])
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		req.Header.Set(RequestIDHeader, "trace-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "trace-42", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "trace-42", seen)
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})
}
