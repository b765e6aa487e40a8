package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/maauso/voxslice/internal/metrics"
)

// FileSplitter implements Splitter in process: it loads the file, slices it
// with a Slicer, normalizes every chunk and writes 16-bit WAV files.
type FileSplitter struct {
	loader  Loader
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// FileSplitterOption is a function that configures a FileSplitter.
type FileSplitterOption func(*FileSplitter)

// WithMetrics records slicing outcomes to m.
func WithMetrics(m *metrics.Metrics) FileSplitterOption {
	return func(s *FileSplitter) {
		s.metrics = m
	}
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l *slog.Logger) FileSplitterOption {
	return func(s *FileSplitter) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the clock used for the default file prefix.
func WithClock(now func() time.Time) FileSplitterOption {
	return func(s *FileSplitter) {
		s.now = now
	}
}

// NewFileSplitter creates a FileSplitter reading input through loader.
func NewFileSplitter(loader Loader, opts ...FileSplitterOption) *FileSplitter {
	s := &FileSplitter{
		loader: loader,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split implements Splitter.Split.
func (s *FileSplitter) Split(ctx context.Context, inputPath, outputDir string, opts SplitOpts) (segments []Segment, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordSource(time.Since(started), err)
	}()

	// Validate input file exists
	if _, statErr := os.Stat(inputPath); os.IsNotExist(statErr) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
	}

	slicer, err := NewSlicer(opts.Slicer)
	if err != nil {
		return nil, err
	}
	if err := opts.Normalize.Validate(); err != nil {
		return nil, err
	}

	w, err := s.loader.Load(ctx, inputPath, opts.Slicer.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = strconv.FormatInt(s.now().Unix(), 10)
	}

	chunks := slicer.Slice(w)
	s.logger.Debug("audio sliced",
		slog.String("input", inputPath),
		slog.Int("samples", w.Len()),
		slog.Int("channels", w.NumChannels()),
		slog.Int("chunks", len(chunks)),
		slog.Int("hop_size", slicer.HopSize()),
		slog.Int("window_size", slicer.WindowSize()),
	)

	var lengths []time.Duration
	dropped := 0
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			removeSegments(segments)
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if c.Audio.Len() == 0 {
			s.logger.Warn("skip empty slice",
				slog.String("input", inputPath),
				slog.Int("start", c.Start),
				slog.Int("end", c.End),
			)
			dropped++
			continue
		}

		path := filepath.Join(outputDir, fmt.Sprintf("%s_%010d_%010d.wav", prefix, c.Start, c.End))
		pcm := ToPCM16(Normalize(c.Audio, opts.Normalize))
		if err := writeSegment(path, pcm, w.SampleRate); err != nil {
			// Cleanup already written segments on error
			removeSegments(segments)
			return nil, fmt.Errorf("write segment %s: %w", filepath.Base(path), err)
		}

		segments = append(segments, Segment{
			Path:       path,
			Start:      c.Start,
			End:        c.End,
			SampleRate: w.SampleRate,
		})
		lengths = append(lengths, c.Audio.Duration())
	}

	// Only segments that survive the whole pass are counted.
	for _, l := range lengths {
		s.metrics.RecordSegment(l)
	}
	for i := 0; i < dropped; i++ {
		s.metrics.RecordDropped()
	}

	s.logger.Info("audio split",
		slog.String("input", inputPath),
		slog.String("output_dir", outputDir),
		slog.Int("segments", len(segments)),
		slog.Duration("elapsed", time.Since(started)),
	)

	return segments, nil
}

func writeSegment(path string, pcm [][]int16, sampleRate int) error {
	f, err := os.Create(path) // #nosec G304 - path is built from caller-controlled directory
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := EncodeWAV(f, pcm, sampleRate); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func removeSegments(segments []Segment) {
	for _, seg := range segments {
		_ = os.Remove(seg.Path)
	}
}

// Verify interface implementation at compile time.
var _ Splitter = (*FileSplitter)(nil)
