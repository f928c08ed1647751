package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/efficient-recorder/internal/observe"
	"github.com/maauso/efficient-recorder/internal/storage"
)

// Static errors for queue operations.
var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("upload: queue closed")
	// ErrDeliveryFailed wraps every store failure reported by the queue.
	ErrDeliveryFailed = errors.New("upload: delivery failed")
)

// Option configures a Queue.
type Option func(*Queue)

// WithHistory records every task's delivery in h.
func WithHistory(h History) Option {
	return func(q *Queue) {
		q.history = h
	}
}

// WithMetrics reports queue depth and delivery outcomes to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithMaxAttempts sets how many store calls a buffered task gets before it
// is dropped. Values below 1 are ignored. Streaming tasks always get one.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n >= 1 {
			q.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the pause between attempts of the same task.
func WithRetryBackoff(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.backoff = d
		}
	}
}

type entry struct {
	task Task
	rec  *Record
}

// Queue delivers tasks to a storage.Adapter strictly one at a time in
// enqueue order. Enqueue never blocks; Run performs the deliveries.
type Queue struct {
	adapter     storage.Adapter
	logger      *slog.Logger
	history     History
	metrics     *observe.Metrics
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	entries  []entry
	inFlight bool
	closed   bool
	wake     chan struct{}
}

// NewQueue creates an empty queue delivering to adapter.
func NewQueue(adapter storage.Adapter, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		adapter:     adapter,
		logger:      logger,
		maxAttempts: 1,
		backoff:     500 * time.Millisecond,
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends task to the tail of the queue and returns its ID.
func (q *Queue) Enqueue(task Task) (string, error) {
	if !task.Kind.IsValid() {
		return "", storage.ErrInvalidKind
	}
	if task.Streaming() && task.Kind != storage.KindAudio {
		return "", fmt.Errorf("%w: only audio can be streamed", storage.ErrInvalidKind)
	}

	rec := NewRecord(task)

	ctx := context.Background()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	// Saved before Run can see the entry so QUEUED never overwrites a later state.
	q.save(ctx, rec)
	q.entries = append(q.entries, entry{task: task, rec: rec})
	depth := len(q.entries)
	q.mu.Unlock()

	q.metrics.AddQueueDepth(ctx, 1)
	q.signal()

	q.logger.Debug("upload task enqueued",
		slog.String("task_id", task.ID),
		slog.String("kind", string(task.Kind)),
		slog.Bool("streaming", task.Streaming()),
		slog.Int("depth", depth),
	)
	return task.ID, nil
}

// Close stops accepting tasks. Run returns once the remaining tasks have
// been delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of tasks waiting for delivery, excluding the one in
// flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// InFlight reports whether a store call is in progress.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Run delivers tasks until the queue is closed and empty, returning nil, or
// until ctx is cancelled, returning ctx.Err(). Tasks still queued at
// cancellation are marked FAILED. Run must be called at most once.
func (q *Queue) Run(ctx context.Context) error {
	for {
		e, ok, closed := q.next()
		if !ok {
			if closed {
				return nil
			}
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				q.abandon(ctx.Err())
				return ctx.Err()
			}
		}

		q.deliver(ctx, e)

		if err := ctx.Err(); err != nil {
			q.abandon(err)
			return err
		}
	}
}

// next pops the head of the queue and marks it in flight.
func (q *Queue) next() (entry, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return entry{}, false, q.closed
	}
	e := q.entries[0]
	q.entries[0] = entry{}
	q.entries = q.entries[1:]
	q.inFlight = true
	return e, true, q.closed
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// deliver runs the store call for one task. A failure is logged and the
// task dropped; it never stops the queue.
func (q *Queue) deliver(ctx context.Context, e entry) {
	defer func() {
		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}()

	task, rec := e.task, e.rec
	q.metrics.AddQueueDepth(ctx, -1)
	_ = rec.Start()
	q.save(ctx, rec)

	attempts := q.maxAttempts
	if task.Streaming() {
		attempts = 1
	}

	logger := q.logger.With(
		slog.String("task_id", task.ID),
		slog.String("kind", string(task.Kind)),
		slog.String("timestamp", task.Timestamp),
	)

	var (
		location string
		size     int
		err      error
	)
	start := time.Now()
	for attempt := 1; ; attempt++ {
		rec.AddAttempt()
		location, size, err = q.store(ctx, task)
		if err == nil || attempt >= attempts || ctx.Err() != nil {
			break
		}
		logger.Warn("upload attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if !sleep(ctx, q.backoff) {
			break
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		_ = rec.Fail(err.Error())
		q.save(ctx, rec)
		q.metrics.RecordUpload(ctx, string(task.Kind), "failed", elapsed)
		logger.Error("upload failed, dropping artifact",
			slog.Int("attempts", rec.Clone().Attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	_ = rec.Complete(location, size)
	q.save(ctx, rec)
	q.metrics.RecordUpload(ctx, string(task.Kind), "delivered", elapsed)
	logger.Info("upload delivered",
		slog.String("location", location),
		slog.Int("bytes", size),
		slog.Duration("elapsed", elapsed),
	)
}

// store dispatches task to the adapter by kind. Adapter panics are turned
// into errors so a misbehaving backend cannot take the queue down.
func (q *Queue) store(ctx context.Context, task Task) (location string, size int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: adapter panic: %v", ErrDeliveryFailed, r)
		}
	}()

	switch {
	case task.Streaming():
		body := &countingReader{r: task.Body}
		if streamer, ok := q.adapter.(storage.AudioStreamer); ok {
			location, err = streamer.StreamAudio(ctx, body, task.Timestamp)
		} else {
			var data []byte
			if data, err = io.ReadAll(body); err == nil {
				location, err = q.adapter.StoreAudio(ctx, data, task.Timestamp)
			}
		}
		size = body.n
	case task.Kind == storage.KindAudio:
		location, err = q.adapter.StoreAudio(ctx, task.Payload, task.Timestamp)
		size = len(task.Payload)
	default:
		location, err = q.adapter.StoreImage(ctx, task.Payload, task.Kind, task.Timestamp)
		size = len(task.Payload)
	}

	if err != nil {
		return "", size, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return location, size, nil
}

// abandon fails every task still waiting in the queue.
func (q *Queue) abandon(cause error) {
	q.mu.Lock()
	left := q.entries
	q.entries = nil
	q.closed = true
	q.mu.Unlock()

	if len(left) == 0 {
		return
	}

	ctx := context.Background()
	q.metrics.AddQueueDepth(ctx, -int64(len(left)))
	for _, e := range left {
		_ = e.rec.Fail(fmt.Sprintf("abandoned: %v", cause))
		q.save(ctx, e.rec)
		q.logger.Warn("upload abandoned at shutdown",
			slog.String("task_id", e.task.ID),
			slog.String("kind", string(e.task.Kind)),
			slog.String("timestamp", e.task.Timestamp),
		)
	}
}

func (q *Queue) save(ctx context.Context, rec *Record) {
	if q.history == nil {
		return
	}
	if err := q.history.Save(context.WithoutCancel(ctx), rec); err != nil {
		q.logger.Warn("failed to save upload record",
			slog.String("task_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
