// Package bootstrap provides dependency initialization for the recorder.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maauso/efficient-recorder/internal/activity"
	"github.com/maauso/efficient-recorder/internal/audio"
	"github.com/maauso/efficient-recorder/internal/config"
	"github.com/maauso/efficient-recorder/internal/media"
	"github.com/maauso/efficient-recorder/internal/observe"
	"github.com/maauso/efficient-recorder/internal/pipeline"
	"github.com/maauso/efficient-recorder/internal/recording"
	"github.com/maauso/efficient-recorder/internal/server"
	"github.com/maauso/efficient-recorder/internal/storage"
	"github.com/maauso/efficient-recorder/internal/upload"
)

// Dependencies holds all initialized dependencies for the recorder.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	Queue    *upload.Queue
	History  *upload.MemoryHistory
	Storage  storage.Adapter

	// StatusHandler serves the status API; nil when the server is disabled.
	StatusHandler http.Handler

	telemetry *observe.Provider
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Storage is the only startup failure besides configuration.
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	metrics := telemetry.Metrics

	history := upload.NewMemoryHistory(cfg.UploadHistorySize)
	queue := upload.NewQueue(store, logger.With(slog.String("component", "upload")),
		upload.WithHistory(history),
		upload.WithMetrics(metrics),
		upload.WithMaxAttempts(cfg.UploadMaxAttempts),
	)

	monitor := audio.NewFFmpegSource(cfg.FFmpegPath, audio.CaptureConfig{
		Format:      audio.Format{SampleRate: cfg.MonitorSampleRate, Channels: cfg.MonitorChannels},
		InputFormat: cfg.AudioInputFormat,
		InputDevice: cfg.AudioInputDevice,
		ChunkBytes:  cfg.ChunkBytes,
	})
	recorder := audio.NewFFmpegSource(cfg.FFmpegPath, audio.CaptureConfig{
		Format:      audio.Format{SampleRate: cfg.RecordSampleRate, Channels: cfg.RecordChannels},
		InputFormat: cfg.AudioInputFormat,
		InputDevice: cfg.AudioInputDevice,
		ChunkBytes:  cfg.ChunkBytes,
	})

	logger.Info("audio capture configured",
		slog.String("input", cfg.AudioInputFormat+":"+cfg.AudioInputDevice),
		slog.Int("monitor_rate", monitor.Config().SampleRate),
		slog.Int("monitor_channels", monitor.Config().Channels),
		slog.Int("record_rate", recorder.Config().SampleRate),
		slog.Int("record_channels", recorder.Config().Channels),
		slog.Int("chunk_bytes", recorder.Config().ChunkBytes),
	)

	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	for _, p := range initProducers(cfg, queue, logger, metrics) {
		opts = append(opts, pipeline.WithProducer(p))
	}

	pl := pipeline.New(pipeline.Config{
		Detector: activity.Config{
			Threshold:    cfg.ThresholdDB,
			ReleaseGrace: cfg.ReleaseGrace,
		},
		DrainDelay:          cfg.DrainDelay,
		Mode:                recording.Mode(cfg.AudioDelivery),
		SkipEmptyRecordings: cfg.SkipEmptyRecordings,
		ShutdownTimeout:     cfg.ShutdownTimeout,
	}, monitor, recorder, queue, logger.With(slog.String("component", "pipeline")), opts...)

	deps := &Dependencies{
		Pipeline:  pl,
		Queue:     queue,
		History:   history,
		Storage:   store,
		telemetry: telemetry,
	}

	if cfg.StatusEnabled() {
		handlers := server.NewHandlers(pl, history, logger)
		deps.StatusHandler = server.NewRouter(handlers, logger, server.Config{
			Metrics: telemetry.Handler(),
		})
	}

	return deps, nil
}

// Close flushes telemetry.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.telemetry == nil {
		return nil
	}
	return d.telemetry.Shutdown(ctx)
}

// initProducers creates the enabled periodic image producers.
func initProducers(cfg *config.Config, queue *upload.Queue, logger *slog.Logger, metrics *observe.Metrics) []pipeline.Producer {
	var producers []pipeline.Producer

	if cfg.ScreenshotEnabled {
		g := media.NewScreenshotGrabber(cfg.FFmpegPath, media.ScreenConfig{
			InputFormat: cfg.ScreenInputFormat,
			InputDevice: cfg.ScreenInputDevice,
		})
		producers = append(producers, media.NewTicker(g, g.Kind(), cfg.ScreenshotInterval, queue, logger, metrics))
		logger.Info("screenshot capture enabled",
			slog.Duration("interval", cfg.ScreenshotInterval),
			slog.String("device", cfg.ScreenInputDevice),
			slog.String("ffmpeg_args", strings.Join(g.Args(), " ")),
		)
	}

	if cfg.WebcamEnabled {
		g := media.NewWebcamGrabber(cfg.FFmpegPath, media.WebcamConfig{
			InputFormat: cfg.WebcamInputFormat,
			Device:      cfg.WebcamDevice,
			Width:       cfg.WebcamWidth,
			Height:      cfg.WebcamHeight,
			Quality:     cfg.ImageQuality,
		})
		producers = append(producers, media.NewTicker(g, g.Kind(), cfg.WebcamInterval, queue, logger, metrics))
		logger.Info("webcam capture enabled",
			slog.Duration("interval", cfg.WebcamInterval),
			slog.String("device", cfg.WebcamDevice),
			slog.Int("quality", cfg.ImageQuality),
			slog.String("ffmpeg_args", strings.Join(g.Args(), " ")),
		)
	}

	return producers
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Adapter, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", s3Store.Bucket()),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.LocalDirectory)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("directory", localStore.Dir()),
	)
	return localStore, nil
}
