// Package upload provides the serialized upload queue that decouples capture
// from persistence, together with delivery records for each queued artifact.
package upload

import (
	"io"
	"time"

	"github.com/maauso/efficient-recorder/internal/storage"
	"github.com/maauso/efficient-recorder/internal/upload/id"
)

// Task is one artifact waiting for delivery. Tasks are immutable once
// constructed.
type Task struct {
	// ID is the unique identifier for this task.
	ID string
	// Kind is the artifact type.
	Kind storage.Kind
	// Timestamp names the artifact in storage.
	Timestamp string
	// Payload holds the artifact bytes. Nil for streaming tasks.
	Payload []byte
	// Body streams a recording that may still be in progress. Nil for
	// buffered tasks.
	Body io.Reader
	// EnqueuedAt is when the task was created.
	EnqueuedAt time.Time
}

// NewTask creates a buffered task.
func NewTask(kind storage.Kind, payload []byte, timestamp string) Task {
	return Task{
		ID:         id.Generate(),
		Kind:       kind,
		Timestamp:  timestamp,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
}

// NewStreamTask creates an audio task whose bytes are read from body during
// delivery.
func NewStreamTask(body io.Reader, timestamp string) Task {
	return Task{
		ID:         id.Generate(),
		Kind:       storage.KindAudio,
		Timestamp:  timestamp,
		Body:       body,
		EnqueuedAt: time.Now(),
	}
}

// Streaming reports whether the task is delivered from Body.
func (t Task) Streaming() bool {
	return t.Body != nil
}
