// Package observe provides the recorder's OpenTelemetry metrics and the
// Prometheus exporter bridge used to scrape them.
//
// Tests should build a [Metrics] with [NewMetrics] over a dedicated
// [metric.MeterProvider]. All recording methods are safe on a nil *Metrics,
// so components can run without metrics wired in.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all recorder metrics.
const meterName = "github.com/maauso/efficient-recorder"

// Metrics holds all OpenTelemetry metric instruments for the recorder.
type Metrics struct {
	// Sessions counts finalized recording sessions.
	Sessions metric.Int64Counter

	// SessionDuration tracks recording session length.
	SessionDuration metric.Float64Histogram

	// SessionBytes tracks the size of finalized recordings.
	SessionBytes metric.Int64Histogram

	// Uploads counts delivery outcomes. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Uploads metric.Int64Counter

	// UploadDuration tracks store call latency per artifact kind.
	UploadDuration metric.Float64Histogram

	// QueueDepth tracks tasks waiting for delivery.
	QueueDepth metric.Int64UpDownCounter

	// CaptureErrors counts producer failures. Use with attribute:
	//   attribute.String("source", ...)
	CaptureErrors metric.Int64Counter
}

// durationBuckets defines histogram bucket boundaries (in seconds) covering
// both store calls and speech episodes.
var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Sessions, err = m.Int64Counter("recorder.sessions",
		metric.WithDescription("Total finalized recording sessions."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("recorder.session.duration",
		metric.WithDescription("Length of recording sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionBytes, err = m.Int64Histogram("recorder.session.bytes",
		metric.WithDescription("Size of finalized recordings."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Uploads, err = m.Int64Counter("recorder.uploads",
		metric.WithDescription("Total upload deliveries by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.UploadDuration, err = m.Float64Histogram("recorder.upload.duration",
		metric.WithDescription("Latency of store calls by artifact kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("recorder.queue.depth",
		metric.WithDescription("Number of tasks waiting in the upload queue."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("recorder.capture.errors",
		metric.WithDescription("Total capture failures by source."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordSession records one finalized session.
func (m *Metrics) RecordSession(ctx context.Context, d time.Duration, bytes int) {
	if m == nil {
		return
	}
	m.Sessions.Add(ctx, 1)
	m.SessionDuration.Record(ctx, d.Seconds())
	m.SessionBytes.Record(ctx, int64(bytes))
}

// RecordUpload records one delivery outcome and its latency.
func (m *Metrics) RecordUpload(ctx context.Context, kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Uploads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
	m.UploadDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// AddQueueDepth adjusts the queue depth gauge.
func (m *Metrics) AddQueueDepth(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(ctx, delta)
}

// RecordCaptureError counts a producer failure.
func (m *Metrics) RecordCaptureError(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.CaptureErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}
