// Package main provides the entry point for the voice-activated recorder.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/efficient-recorder/internal/bootstrap"
	"github.com/maauso/efficient-recorder/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting efficient recorder",
		slog.String("storage_mode", cfg.StorageMode),
		slog.Float64("threshold_db", cfg.ThresholdDB),
		slog.Duration("release_grace", cfg.ReleaseGrace),
		slog.Duration("drain_delay", cfg.DrainDelay),
		slog.String("audio_delivery", cfg.AudioDelivery),
		slog.Bool("screenshots", cfg.ScreenshotEnabled),
		slog.Bool("webcam", cfg.WebcamEnabled),
		slog.String("log_level", cfg.LogLevel),
	)
	logger.Debug("effective configuration", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.Close(shutdownCtx); err != nil {
			logger.Warn("failed to flush telemetry", slog.String("error", err.Error()))
		}
	}()

	errCh := make(chan error, 1)
	var srv *http.Server
	if deps.StatusHandler != nil {
		srv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.StatusPort),
			Handler:      deps.StatusHandler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("status server listening",
				slog.String("addr", srv.Addr),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("status server failed: %w", err)
			}
		}()
	}

	runErr := runPipeline(ctx, deps.Pipeline.Run, errCh, logger)
	if ctx.Err() != nil {
		logger.Info("received shutdown signal")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("recorder stopped gracefully")
	return nil
}

// runPipeline runs the pipeline until ctx is done or the status server
// fails. A server failure stops the pipeline in order and is returned once
// the pipeline has drained.
func runPipeline(ctx context.Context, run func(context.Context) error, serverErr <-chan error, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var srvErr error
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case err := <-serverErr:
			srvErr = err
			logger.Error("stopping pipeline", slog.String("error", err.Error()))
			cancel()
		case <-runCtx.Done():
		}
	}()

	runErr := run(runCtx)
	cancel()
	<-watched

	if runErr != nil {
		runErr = fmt.Errorf("pipeline: %w", runErr)
	}
	return errors.Join(runErr, srvErr)
}
