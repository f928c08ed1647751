// Package pipeline owns the voice-activated capture pipeline: the monitor
// feed drives the activity detector, which opens and closes recording
// sessions fed by the high-fidelity feed; finalized recordings and periodic
// images flow through one serialized upload queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/efficient-recorder/internal/activity"
	"github.com/maauso/efficient-recorder/internal/audio"
	"github.com/maauso/efficient-recorder/internal/observe"
	"github.com/maauso/efficient-recorder/internal/recording"
	"github.com/maauso/efficient-recorder/internal/storage"
	"github.com/maauso/efficient-recorder/internal/upload"
)

// Defaults for Config.
const (
	DefaultDrainDelay      = 500 * time.Millisecond
	DefaultShutdownTimeout = 30 * time.Second
	DefaultReopenDelay     = time.Second
)

// Static errors for pipeline lifecycle.
var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("pipeline: already running")
	// ErrPanic is returned by Run when a pipeline goroutine panicked.
	ErrPanic = errors.New("pipeline: recovered panic")
)

// Config holds pipeline tuning.
type Config struct {
	// Detector configures the activity gate.
	Detector activity.Config
	// DrainDelay is the wait between stopping the high-fidelity feed and
	// finalizing the session.
	DrainDelay time.Duration
	// Mode selects buffered or streaming audio delivery.
	Mode recording.Mode
	// SkipEmptyRecordings suppresses zero-length audio uploads.
	SkipEmptyRecordings bool
	// ShutdownTimeout bounds how long Run waits for the upload queue to drain.
	ShutdownTimeout time.Duration
	// ReopenDelay is the pause before reopening a monitor feed that ended.
	ReopenDelay time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Detector:        activity.DefaultConfig(),
		DrainDelay:      DefaultDrainDelay,
		Mode:            recording.ModeBuffered,
		ShutdownTimeout: DefaultShutdownTimeout,
		ReopenDelay:     DefaultReopenDelay,
	}
}

// Producer is a periodic artifact source, such as a media.Ticker.
type Producer interface {
	Run(ctx context.Context) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithProducer adds a producer that runs for the lifetime of the pipeline.
func WithProducer(p Producer) Option {
	return func(pl *Pipeline) {
		pl.producers = append(pl.producers, p)
	}
}

// WithMetrics reports session metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(pl *Pipeline) {
		pl.metrics = m
	}
}

// WithClock sets the clock driving the release timer and the drain delay.
func WithClock(c activity.Clock) Option {
	return func(pl *Pipeline) {
		pl.clock = c
	}
}

// WithNow sets the wall clock used for session timestamps.
func WithNow(now func() time.Time) Option {
	return func(pl *Pipeline) {
		pl.now = now
	}
}

// Pipeline is the owned aggregate of detector, session and queue.
type Pipeline struct {
	cfg       Config
	monitor   audio.Source
	recorder  audio.Source
	queue     *upload.Queue
	producers []Producer
	logger    *slog.Logger
	metrics   *observe.Metrics
	clock     activity.Clock
	now       func() time.Time

	detector *activity.Detector
	session  *recording.Recorder

	started  atomic.Bool
	running  atomic.Bool
	sessions atomic.Int64

	// Owned by the monitor goroutine, then by Run after it returns.
	monitorStream audio.Stream
	hifi          audio.Stream
	sessionTS     string

	mu      sync.Mutex
	lastErr string
}

// New creates a Pipeline. monitor feeds the detector; recorder is opened
// for each session.
func New(cfg Config, monitor, recorder audio.Source, queue *upload.Queue, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DrainDelay < 0 {
		cfg.DrainDelay = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.ReopenDelay <= 0 {
		cfg.ReopenDelay = DefaultReopenDelay
	}
	if !cfg.Mode.IsValid() {
		cfg.Mode = recording.ModeBuffered
	}

	p := &Pipeline{
		cfg:      cfg,
		monitor:  monitor,
		recorder: recorder,
		queue:    queue,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.clock == nil {
		p.clock = activity.RealClock{}
	}
	p.detector = activity.NewDetector(cfg.Detector, p.clock)
	p.session = recording.NewRecorder(cfg.Mode, p.now)
	return p
}

// Run starts the pipeline and blocks until ctx is cancelled or a pipeline
// goroutine panics, then shuts down in order: producers and the monitor
// feed stop, an open session is finalized and enqueued, and the upload
// queue is drained within Config.ShutdownTimeout.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	// Capture processes outlive ctx so shutdown can stop them in order.
	monitor, err := p.monitor.Open(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("open monitor feed: %w", err)
	}
	p.monitorStream = monitor

	queueCtx, cancelQueue := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelQueue()
	queueDone := make(chan error, 1)
	go func() {
		queueDone <- p.queue.Run(queueCtx)
	}()

	p.running.Store(true)
	p.logger.Info("pipeline started",
		slog.Float64("threshold_db", p.detector.Config().Threshold),
		slog.Duration("release_grace", p.detector.Config().ReleaseGrace),
		slog.Duration("drain_delay", p.cfg.DrainDelay),
		slog.String("mode", string(p.session.Mode())),
		slog.Int("producers", len(p.producers)),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, prod := range p.producers {
		g.Go(guard(p.logger, func() error {
			return prod.Run(gctx)
		}))
	}
	g.Go(guard(p.logger, func() error {
		return p.watch(gctx)
	}))
	runErr := g.Wait()

	p.shutdown(cancelQueue, queueDone)
	p.running.Store(false)
	return runErr
}

// shutdown stops capture, flushes the open session and drains the queue.
func (p *Pipeline) shutdown(cancelQueue context.CancelFunc, queueDone <-chan error) {
	p.logger.Info("pipeline shutting down")

	if p.monitorStream != nil {
		go audio.Drain(p.monitorStream.Chunks())
		if err := p.monitorStream.Close(); err != nil {
			p.logger.Warn("failed to close monitor feed", slog.String("error", err.Error()))
		}
		p.monitorStream = nil
	}

	if p.detector.Halt() == activity.EventStop || p.session.Open() {
		p.safeStop("shutdown")
	}

	p.queue.Close()
	pending := p.queue.Len()
	if pending > 0 || p.queue.InFlight() {
		p.logger.Info("draining upload queue",
			slog.Int("pending", pending),
			slog.Duration("timeout", p.cfg.ShutdownTimeout),
		)
	}

	timer := time.NewTimer(p.cfg.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-queueDone:
	case <-timer.C:
		p.logger.Warn("upload queue did not drain in time, abandoning remaining tasks",
			slog.Int("pending", p.queue.Len()),
		)
		cancelQueue()
		<-queueDone
	}

	p.logger.Info("pipeline stopped", slog.Int64("sessions", p.sessions.Load()))
}

// safeStop runs stopSession during shutdown, where a panic must not prevent
// the queue from draining.
func (p *Pipeline) safeStop(reason string) {
	defer func() {
		if r := recover(); r != nil {
			p.setErr(fmt.Sprintf("panic finalizing session: %v", r))
			p.logger.Error("panic finalizing session at shutdown",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	p.stopSession(context.Background(), reason)
}

// guard converts a panic in fn into ErrPanic so the errgroup cancels its
// siblings and Run shuts down in order.
func guard(logger *slog.Logger, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in pipeline goroutine",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return fn()
	}
}

// Ready reports whether the pipeline is running.
func (p *Pipeline) Ready() bool {
	return p.running.Load()
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Running       bool   `json:"running"`
	DetectorState string `json:"detector_state"`
	SessionOpen   bool   `json:"session_open"`
	Mode          string `json:"mode"`
	QueueDepth    int    `json:"queue_depth"`
	UploadActive  bool   `json:"upload_in_flight"`
	Sessions      int64  `json:"sessions"`
	LastError     string `json:"last_error,omitempty"`
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()

	return Status{
		Running:       p.running.Load(),
		DetectorState: p.detector.State().String(),
		SessionOpen:   p.session.Open(),
		Mode:          string(p.session.Mode()),
		QueueDepth:    p.queue.Len(),
		UploadActive:  p.queue.InFlight(),
		Sessions:      p.sessions.Load(),
		LastError:     lastErr,
	}
}

func (p *Pipeline) setErr(msg string) {
	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()
}

// timestamp formats a session start for artifact naming.
func timestamp(t time.Time) string {
	return storage.Timestamp(t)
}
