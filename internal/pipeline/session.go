package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maauso/efficient-recorder/internal/audio"
	"github.com/maauso/efficient-recorder/internal/storage"
	"github.com/maauso/efficient-recorder/internal/upload"
)

// startSession opens a recording session and the high-fidelity feed that
// fills it. In streaming mode the recording is enqueued right away so it
// keeps its place in the upload order.
func (p *Pipeline) startSession(ctx context.Context) {
	started, err := p.session.Begin()
	if err != nil {
		p.logger.Error("failed to begin session", slog.String("error", err.Error()))
		return
	}
	p.sessionTS = timestamp(started.Start)

	p.logger.Info("voice detected, recording started",
		slog.String("timestamp", p.sessionTS),
	)

	if started.Stream != nil {
		if _, err := p.queue.Enqueue(upload.NewStreamTask(started.Stream, p.sessionTS)); err != nil {
			// Nothing would read the stream, so the episode is dropped.
			p.session.Abort(err)
			p.setErr("enqueue stream: " + err.Error())
			p.logger.Error("failed to enqueue streaming recording, session dropped",
				slog.String("timestamp", p.sessionTS),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	stream, err := p.recorder.Open(context.WithoutCancel(ctx))
	if err != nil {
		// The session stays open so the stop path finalizes it.
		p.captureError(ctx, "recorder", err)
		return
	}
	p.hifi = stream
	go p.pump(ctx, stream, started.Seq)
}

// pump appends high-fidelity chunks to the session it was opened for.
// Chunks that arrive after that session was finalized are discarded.
func (p *Pipeline) pump(ctx context.Context, stream audio.Stream, seq uint64) {
	dropped := 0
	for chunk := range stream.Chunks() {
		if err := p.session.AppendTo(seq, chunk); err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		p.logger.Debug("discarded chunks after finalize", slog.Int("chunks", dropped))
	}
	if err := stream.Err(); err != nil {
		p.captureError(context.WithoutCancel(ctx), "recorder", err)
	}
}

// stopSession stops the high-fidelity feed, waits the drain delay for its
// trailing output, finalizes the session and enqueues the recording.
func (p *Pipeline) stopSession(ctx context.Context, reason string) {
	if !p.session.Open() {
		return
	}

	if stream := p.hifi; stream != nil {
		p.hifi = nil
		go func() {
			if err := stream.Close(); err != nil {
				p.logger.Warn("failed to stop recorder feed", slog.String("error", err.Error()))
			}
		}()
	}

	if p.cfg.DrainDelay > 0 {
		<-p.clock.NewTimer(p.cfg.DrainDelay).C()
	}

	end := p.now()
	res, err := p.session.Finalize()
	if err != nil {
		p.setErr("finalize: " + err.Error())
		p.logger.Error("failed to finalize session",
			slog.String("timestamp", p.sessionTS),
			slog.String("error", err.Error()),
		)
		return
	}

	p.sessions.Add(1)
	duration := res.Duration(end)
	p.metrics.RecordSession(context.WithoutCancel(ctx), duration, res.Bytes)

	logger := p.logger.With(
		slog.String("timestamp", p.sessionTS),
		slog.String("reason", reason),
		slog.Int("chunks", res.Chunks),
		slog.Int("bytes", res.Bytes),
		slog.Duration("duration", duration),
	)

	switch {
	case res.Streamed:
		logger.Info("recording finalized")
	case res.Bytes == 0 && p.cfg.SkipEmptyRecordings:
		logger.Info("recording empty, skipping upload")
	default:
		task := upload.NewTask(storage.KindAudio, res.Payload, p.sessionTS)
		if _, err := p.queue.Enqueue(task); err != nil {
			if errors.Is(err, upload.ErrQueueClosed) {
				logger.Error("queue closed, recording lost")
				return
			}
			logger.Error("failed to enqueue recording", slog.String("error", err.Error()))
			return
		}
		logger.Info("recording finalized and queued")
	}
}
