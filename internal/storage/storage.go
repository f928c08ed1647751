// Package storage persists captured artifacts (audio recordings, screenshots
// and webcam frames). It defines the Adapter interface (port) used by the
// upload queue and implementations for local disk and S3-compatible object
// storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrInvalidKind is returned when an artifact kind is not valid for the
// requested operation.
var ErrInvalidKind = errors.New("storage: invalid artifact kind")

// Kind identifies the type of artifact being stored.
type Kind string

const (
	// KindAudio is a finalized voice recording.
	KindAudio Kind = "audio"
	// KindScreenshot is a PNG desktop screenshot.
	KindScreenshot Kind = "screenshot"
	// KindWebcam is a JPEG webcam frame.
	KindWebcam Kind = "webcam"
)

// IsValid returns true if the kind is one of the known artifact kinds.
func (k Kind) IsValid() bool {
	return k == KindAudio || k == KindScreenshot || k == KindWebcam
}

// IsImage returns true for the image kinds accepted by StoreImage.
func (k Kind) IsImage() bool {
	return k == KindScreenshot || k == KindWebcam
}

// Extension returns the file extension, including the dot.
func (k Kind) Extension() string {
	switch k {
	case KindAudio:
		return ".wav"
	case KindWebcam:
		return ".jpg"
	default:
		return ".png"
	}
}

// ContentType returns the MIME type stored alongside the object.
func (k Kind) ContentType() string {
	switch k {
	case KindAudio:
		return "audio/wav"
	case KindWebcam:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// prefix is the leading part of the object key. Audio objects are named
// "recording-..." rather than after their kind.
func (k Kind) prefix() string {
	if k == KindAudio {
		return "recording"
	}
	return string(k)
}

// Key returns the object key (or file name) for an artifact:
// recording-{ts}.wav, screenshot-{ts}.png or webcam-{ts}.jpg.
// Path separators and ':' in the timestamp are replaced by '-'.
func Key(kind Kind, timestamp string) string {
	return fmt.Sprintf("%s-%s%s", kind.prefix(), sanitizeTimestamp(timestamp), kind.Extension())
}

// timestampLayout is ISO-8601 in UTC with millisecond precision and the
// filesystem-unsafe ':' separators replaced by '-'.
const timestampLayout = "2006-01-02T15-04-05.000Z"

// Timestamp formats t for use in artifact keys,
// e.g. 2024-01-01T00-00-00.000Z.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// sanitizeTimestamp replaces characters that are not safe in file names.
func sanitizeTimestamp(ts string) string {
	return strings.NewReplacer(":", "-", "/", "-", "\\", "-").Replace(ts)
}

// Adapter defines the storage contract used by the upload queue.
// Implementations must be safe to call repeatedly with distinct timestamps;
// the queue never issues two calls concurrently.
type Adapter interface {
	// StoreAudio persists a finalized recording and returns its location
	// (object key or file path).
	StoreAudio(ctx context.Context, data []byte, timestamp string) (location string, err error)

	// StoreImage persists a screenshot or webcam frame and returns its location.
	// Returns ErrInvalidKind for non-image kinds.
	StoreImage(ctx context.Context, data []byte, kind Kind, timestamp string) (location string, err error)
}

// AudioStreamer is implemented by adapters that can persist a recording
// while it is still being captured. The reader returns io.EOF once the
// recording is finalized.
type AudioStreamer interface {
	StreamAudio(ctx context.Context, r io.Reader, timestamp string) (location string, err error)
}
