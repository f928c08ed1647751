package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/maauso/efficient-recorder/internal/activity"
	"github.com/maauso/efficient-recorder/internal/audio"
)

// watch consumes the monitor feed until ctx is cancelled. A feed that ends
// on its own is a capture error: the open session is finalized and the feed
// is reopened after Config.ReopenDelay.
func (p *Pipeline) watch(ctx context.Context) error {
	for {
		err := p.consume(ctx, p.monitorStream)
		if ctx.Err() != nil {
			return nil
		}

		p.captureError(ctx, "monitor", err)
		p.monitorStream = nil
		if p.detector.Halt() == activity.EventStop {
			p.stopSession(ctx, "monitor feed lost")
		}

		for p.monitorStream == nil {
			if !sleepCtx(ctx, p.cfg.ReopenDelay) {
				return nil
			}
			stream, err := p.monitor.Open(context.WithoutCancel(ctx))
			if err != nil {
				p.captureError(ctx, "monitor", err)
				continue
			}
			p.logger.Info("monitor feed reopened")
			p.monitorStream = stream
		}
	}
}

// consume runs the detector over one monitor stream. It returns nil when ctx
// is cancelled, or the stream's error once its chunks are exhausted.
func (p *Pipeline) consume(ctx context.Context, stream audio.Stream) error {
	chunks := stream.Chunks()
	for {
		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-chunks:
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return audio.ErrCaptureExited
			}
			level := audio.Level(chunk)
			if p.detector.Observe(level) == activity.EventStart {
				p.logger.Debug("level above threshold", slog.Float64("level_db", level))
				p.startSession(ctx)
			}

		case <-p.detector.Expired():
			if p.detector.Expire() == activity.EventStop {
				p.stopSession(ctx, "silence")
			}
		}
	}
}

func (p *Pipeline) captureError(ctx context.Context, source string, err error) {
	if err == nil {
		return
	}
	p.metrics.RecordCaptureError(ctx, source)
	p.setErr(source + ": " + err.Error())
	p.logger.Warn("capture error",
		slog.String("source", source),
		slog.String("error", err.Error()),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
