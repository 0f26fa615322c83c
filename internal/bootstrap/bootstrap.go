// Package bootstrap provides dependency initialization for the slicing API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/slicekit/slicekit/internal/batch"
	"github.com/slicekit/slicekit/internal/config"
	"github.com/slicekit/slicekit/internal/decode"
	"github.com/slicekit/slicekit/internal/export"
	"github.com/slicekit/slicekit/internal/job"
	"github.com/slicekit/slicekit/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	SliceService *job.SliceService
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Decoder chains: native backends first, ffmpeg as the catch-all. The
	// native-only chain backs the "native" decode policy. The ffmpeg
	// backend spools its raw output through the storage temp directory.
	nativeChain := decode.NewChain(logger,
		decode.NewWAVDecoder(),
		decode.NewFLACDecoder(),
		decode.NewOggDecoder(),
	)
	fullChain := decode.NewChain(logger,
		decode.NewWAVDecoder(),
		decode.NewFLACDecoder(),
		decode.NewOggDecoder(),
		decode.NewFFmpegDecoder(cfg.FFmpegPath, store),
	)
	decoders := decode.NewSelector(fullChain, nativeChain)

	exporter := export.NewExporter(store, logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	// Runners are built per job: jobs pick their own mode and worker
	// count, bounded by the configured maximum. Jobs that omit a mode run
	// with the configured PARALLEL_MODE.
	defaultMode, err := batch.ParseMode(cfg.ParallelMode)
	if err != nil {
		return nil, fmt.Errorf("parse parallel mode: %w", err)
	}
	maxWorkers := cfg.Workers
	factory := func(mode batch.Mode, workers int) (job.Runner, error) {
		if workers > maxWorkers {
			workers = maxWorkers
		}
		return batch.NewRunner(mode, workers,
			batch.WithLogger(logger),
			batch.WithWorkerCommand(cfg.WorkerCommand),
		)
	}

	svc := job.NewSliceService(repo, decoders, exporter, factory, logger,
		job.WithDefaultMode(defaultMode))

	return &Dependencies{
		SliceService: svc,
	}, nil
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
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}
