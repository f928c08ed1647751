// Package media provides the periodic image producers: screen and webcam
// stills captured with ffmpeg and handed to the upload queue.
package media

import (
	"context"
	"errors"
)

// ErrCaptureFailed is returned when a grab produced no image.
var ErrCaptureFailed = errors.New("media: capture failed")

// Grabber captures one still image.
type Grabber interface {
	// Grab returns the encoded image bytes. Implementations must honor ctx
	// cancellation.
	Grab(ctx context.Context) ([]byte, error)
}
