package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/efficient-recorder/internal/observe"
	"github.com/maauso/efficient-recorder/internal/storage"
	"github.com/maauso/efficient-recorder/internal/upload"
)

// Enqueuer accepts captured artifacts for delivery.
type Enqueuer interface {
	Enqueue(task upload.Task) (string, error)
}

// Ticker runs a Grabber on a fixed interval and enqueues each image. Grabs
// never overlap; a tick that arrives while a grab is running is dropped.
type Ticker struct {
	grabber  Grabber
	kind     storage.Kind
	interval time.Duration
	sink     Enqueuer
	logger   *slog.Logger
	metrics  *observe.Metrics
	now      func() time.Time
}

// NewTicker creates a Ticker producing artifacts of the given kind.
func NewTicker(g Grabber, kind storage.Kind, interval time.Duration, sink Enqueuer, logger *slog.Logger, metrics *observe.Metrics) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		grabber:  g,
		kind:     kind,
		interval: interval,
		sink:     sink,
		logger:   logger.With(slog.String("source", string(kind))),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run grabs one image per interval until ctx is cancelled or the sink stops
// accepting tasks. Capture failures are logged and the next tick proceeds.
func (t *Ticker) Run(ctx context.Context) error {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	t.logger.Info("image producer started", slog.Duration("interval", t.interval))
	defer t.logger.Info("image producer stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if !t.capture(ctx) {
				return nil
			}
		}
	}
}

// capture performs one grab. It returns false when the producer should stop.
func (t *Ticker) capture(ctx context.Context) bool {
	ts := storage.Timestamp(t.now())

	data, err := t.grabber.Grab(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		t.metrics.RecordCaptureError(ctx, string(t.kind))
		t.logger.Warn("image capture failed",
			slog.String("timestamp", ts),
			slog.String("error", err.Error()),
		)
		return true
	}

	if _, err := t.sink.Enqueue(upload.NewTask(t.kind, data, ts)); err != nil {
		if errors.Is(err, upload.ErrQueueClosed) {
			return false
		}
		t.logger.Error("failed to enqueue image",
			slog.String("timestamp", ts),
			slog.String("error", err.Error()),
		)
	}
	return true
}
