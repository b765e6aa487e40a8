// Package bootstrap provides dependency initialization for voxslice.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maauso/voxslice/internal/audio"
	"github.com/maauso/voxslice/internal/config"
	"github.com/maauso/voxslice/internal/job"
	"github.com/maauso/voxslice/internal/metrics"
	"github.com/maauso/voxslice/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	SliceService *job.SliceService
	Metrics      *metrics.Metrics
}

// NewDependencies creates and initializes all dependencies for the application.
// Metrics are registered with reg; pass nil to run without metrics.
func NewDependencies(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.NewMetrics(reg)
	}

	splitter := NewSplitter(cfg, logger, m)
	repo := job.NewMemoryRepository()

	svc := job.NewSliceService(
		repo,
		splitter,
		store,
		logger,
		job.WithSplitOpts(cfg.SplitOpts()),
		job.WithMaxConcurrentSources(cfg.MaxConcurrentSources),
		job.WithJobTimeout(cfg.JobTimeout()),
		job.WithS3Publishing(cfg.S3Enabled()),
	)

	return &Dependencies{
		SliceService: svc,
		Metrics:      m,
	}, nil
}

// NewSplitter builds the file splitter selected by AUDIO_DECODER.
// m may be nil.
func NewSplitter(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *audio.FileSplitter {
	return audio.NewFileSplitter(newLoader(cfg, logger),
		audio.WithMetrics(m),
		audio.WithLogger(logger),
	)
}

func newLoader(cfg *config.Config, logger *slog.Logger) audio.Loader {
	if cfg.AudioDecoder == config.DecoderWAV {
		logger.Debug("audio decoder configured", slog.String("decoder", config.DecoderWAV))
		return audio.NewWAVLoader()
	}
	logger.Debug("audio decoder configured",
		slog.String("decoder", config.DecoderFFmpeg),
		slog.String("ffmpeg_path", cfg.FFmpegPath),
	)
	return audio.NewFFmpegLoader(cfg.FFmpegPath, cfg.TempDir)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
