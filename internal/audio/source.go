// Package audio provides live audio capture and signal level estimation.
package audio

import (
	"context"
	"errors"
)

// ErrCaptureExited is returned by Stream.Err when the capture process stopped
// on its own rather than through Close.
var ErrCaptureExited = errors.New("audio: capture process exited unexpectedly")

// Format describes the PCM layout of a capture feed. Samples are always
// signed 16-bit little-endian.
type Format struct {
	SampleRate int
	Channels   int
}

// CaptureConfig configures a capture feed.
type CaptureConfig struct {
	Format

	// InputFormat is the ffmpeg input device format (e.g. "pulse", "alsa",
	// "avfoundation", "lavfi").
	InputFormat string

	// InputDevice is the device name passed to ffmpeg -i.
	InputDevice string

	// ChunkBytes is the size of each delivered chunk. It is rounded down to a
	// whole number of samples.
	ChunkBytes int
}

// Stream is a live capture feed: a lazy, unbounded, non-restartable sequence
// of PCM chunks delivered in arrival order.
type Stream interface {
	// Chunks returns the channel of captured chunks. It is closed when the
	// capture ends, after which Err reports why.
	Chunks() <-chan []byte

	// Err returns the error that ended the stream, or nil if it was closed
	// normally. Only meaningful after Chunks is closed.
	Err() error

	// Close stops the capture. Data buffered by the device may still be
	// delivered on Chunks until it is closed.
	Close() error
}

// Source opens capture streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use it when a stream is being closed but its remaining chunks are not
// needed, so the producer is never blocked on send.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
