package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingRun waits for ctx like Pipeline.Run and then returns err.
func blockingRun(err error) func(context.Context) error {
	return func(ctx context.Context) error {
		<-ctx.Done()
		return err
	}
}

func TestRunPipeline_ServerFailureIsReturned(t *testing.T) {
	serverErr := make(chan error, 1)
	errListen := errors.New("status server failed: address already in use")
	serverErr <- errListen

	done := make(chan error, 1)
	go func() {
		done <- runPipeline(context.Background(), blockingRun(nil), serverErr, discardLogger())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, errListen)
	case <-time.After(time.Second):
		t.Fatal("pipeline was not stopped by the server failure")
	}
}

func TestRunPipeline_SignalStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runPipeline(ctx, blockingRun(nil), make(chan error), discardLogger())
	assert.NoError(t, err)
}

func TestRunPipeline_PipelineErrorIsWrapped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errPanic := errors.New("pipeline goroutine panicked")

	err := runPipeline(ctx, blockingRun(errPanic), make(chan error), discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, errPanic)
	assert.Contains(t, err.Error(), "pipeline:")
}

func TestRunPipeline_BothErrorsReported(t *testing.T) {
	serverErr := make(chan error, 1)
	errListen := errors.New("listen failed")
	errRun := errors.New("run failed")
	serverErr <- errListen

	err := runPipeline(context.Background(), blockingRun(errRun), serverErr, discardLogger())
	assert.ErrorIs(t, err, errListen)
	assert.ErrorIs(t, err, errRun)
}
