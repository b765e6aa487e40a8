// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/voxslice/internal/audio"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Decoder names accepted by AUDIO_DECODER.
const (
	DecoderFFmpeg = "ffmpeg"
	DecoderWAV    = "wav"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"min=1,max=65535"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/voxslice" json:"temp_dir" validate:"required"`

	// Processing settings
	MaxConcurrentSources int `env:"MAX_CONCURRENT_SOURCES, default=4" json:"max_concurrent_sources" validate:"min=1,max=64"`
	JobTimeoutSec        int `env:"JOB_TIMEOUT_SEC, default=600" json:"job_timeout_sec" validate:"min=0"`

	// Slicer settings
	SampleRate         int     `env:"SAMPLE_RATE, default=32000" json:"sample_rate" validate:"min=8000,max=192000"`
	SliceThresholdDB   float64 `env:"SLICE_THRESHOLD_DB, default=-40" json:"slice_threshold_db" validate:"lt=0"`
	SliceMinLengthMs   int     `env:"SLICE_MIN_LENGTH_MS, default=5000" json:"slice_min_length_ms" validate:"gtefield=SliceMinIntervalMs"`
	SliceMinIntervalMs int     `env:"SLICE_MIN_INTERVAL_MS, default=300" json:"slice_min_interval_ms" validate:"gtefield=SliceHopSizeMs"`
	SliceHopSizeMs     int     `env:"SLICE_HOP_SIZE_MS, default=20" json:"slice_hop_size_ms" validate:"min=1"`
	SliceMaxSilKeptMs  int     `env:"SLICE_MAX_SIL_KEPT_MS, default=5000" json:"slice_max_sil_kept_ms" validate:"gtefield=SliceHopSizeMs"`

	// Normalization settings
	NormalizeMax   float64 `env:"NORMALIZE_MAX, default=0.9" json:"normalize_max" validate:"gt=0,lte=1"`
	NormalizeAlpha float64 `env:"NORMALIZE_ALPHA, default=0.25" json:"normalize_alpha" validate:"gte=0,lte=1"`

	// Decoder settings
	AudioDecoder string `env:"AUDIO_DECODER, default=ffmpeg" json:"audio_decoder" validate:"oneof=ffmpeg wav"`
	FFmpegPath   string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty" validate:"required_with=S3Bucket"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// JobTimeout returns the per-job processing limit, or zero for none.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSec) * time.Second
}

// SlicerOpts returns the slicer parameters configured for every job.
func (c *Config) SlicerOpts() audio.SlicerOpts {
	return audio.SlicerOpts{
		SampleRate:    c.SampleRate,
		ThresholdDB:   c.SliceThresholdDB,
		MinLengthMs:   c.SliceMinLengthMs,
		MinIntervalMs: c.SliceMinIntervalMs,
		HopSizeMs:     c.SliceHopSizeMs,
		MaxSilKeptMs:  c.SliceMaxSilKeptMs,
	}
}

// NormalizeOpts returns the per-segment normalization parameters.
func (c *Config) NormalizeOpts() audio.NormalizeOpts {
	return audio.NormalizeOpts{
		MaxAmplitude: c.NormalizeMax,
		AlphaMix:     c.NormalizeAlpha,
	}
}

// SplitOpts combines SlicerOpts and NormalizeOpts.
func (c *Config) SplitOpts() audio.SplitOpts {
	return audio.SplitOpts{
		Slicer:    c.SlicerOpts(),
		Normalize: c.NormalizeOpts(),
	}
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and that the slicer parameters can build
// a working slicer at the configured sample rate.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := audio.NewSlicer(c.SlicerOpts()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger on stdout based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, MaxConcurrentSources: %d, SampleRate: %d, Slicer: %+v, Normalize: %+v, AudioDecoder: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.MaxConcurrentSources,
		c.SampleRate,
		c.SlicerOpts(),
		c.NormalizeOpts(),
		c.AudioDecoder,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		mask(c.AWSAccessKeyID),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides all but the last four characters of a credential.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
