package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Static errors for audio loading.
var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("audio: input file does not exist")
	// ErrSampleRateMismatch is returned when a file is not at the requested rate
	// and the loader cannot resample.
	ErrSampleRateMismatch = errors.New("audio: sample rate mismatch")
)

// Loader decodes an audio file into memory at a given sample rate.
type Loader interface {
	Load(ctx context.Context, path string, sampleRate int) (Waveform, error)
}

// WAVLoader reads PCM WAV files directly. It does not resample.
type WAVLoader struct{}

// NewWAVLoader creates a WAVLoader.
func NewWAVLoader() *WAVLoader {
	return &WAVLoader{}
}

// Load implements Loader.Load.
func (l *WAVLoader) Load(ctx context.Context, path string, sampleRate int) (Waveform, error) {
	select {
	case <-ctx.Done():
		return Waveform{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		if os.IsNotExist(err) {
			return Waveform{}, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return Waveform{}, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()

	w, err := DecodeWAV(f)
	if err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if sampleRate > 0 && w.SampleRate != sampleRate {
		return Waveform{}, fmt.Errorf("%w: %s is %d Hz, want %d Hz", ErrSampleRateMismatch, path, w.SampleRate, sampleRate)
	}
	return w, nil
}

// FFmpegLoader decodes any format ffmpeg understands, downmixing to mono
// and resampling to the requested rate.
type FFmpegLoader struct {
	ffmpegPath string
	tempDir    string
}

// NewFFmpegLoader creates a new FFmpegLoader.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
// Intermediate files go to tempDir, or os.TempDir() when empty.
func NewFFmpegLoader(ffmpegPath, tempDir string) *FFmpegLoader {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegLoader{ffmpegPath: ffmpegPath, tempDir: tempDir}
}

// Load implements Loader.Load.
func (l *FFmpegLoader) Load(ctx context.Context, path string, sampleRate int) (Waveform, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Waveform{}, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if sampleRate <= 0 {
		return Waveform{}, fmt.Errorf("audio: sample rate must be positive, got %d", sampleRate)
	}

	tmp, err := os.CreateTemp(l.tempDir, "decode_*.wav")
	if err != nil {
		return Waveform{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	args := []string{
		"-y",
		"-i", path,
		"-vn",
		"-map_metadata", "-1",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	}
	if err := l.runFFmpeg(ctx, args); err != nil {
		return Waveform{}, fmt.Errorf("transcode %s: %w", filepath.Base(path), err)
	}

	f, err := os.Open(tmpPath) // #nosec G304 - temp file created above
	if err != nil {
		return Waveform{}, fmt.Errorf("open transcoded file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w, err := DecodeWAV(f)
	if err != nil {
		return Waveform{}, fmt.Errorf("decode transcoded %s: %w", filepath.Base(path), err)
	}
	return w, nil
}

func (l *FFmpegLoader) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, l.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// Verify interface implementations at compile time.
var (
	_ Loader = (*WAVLoader)(nil)
	_ Loader = (*FFmpegLoader)(nil)
)
