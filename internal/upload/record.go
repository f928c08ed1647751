package upload

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/efficient-recorder/internal/storage"
)

// Status represents the delivery state of a queued artifact.
type Status string

const (
	// StatusQueued indicates the task is waiting in the queue.
	StatusQueued Status = "QUEUED"
	// StatusDelivering indicates the task's store call is in flight.
	StatusDelivering Status = "DELIVERING"
	// StatusDelivered indicates the artifact was stored.
	StatusDelivered Status = "DELIVERED"
	// StatusFailed indicates delivery failed and the task was dropped.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("upload: invalid state transition")

// validTransitions defines which state transitions are allowed. A queued
// task can fail without being delivered when it is abandoned at shutdown.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusDelivering, StatusFailed},
	StatusDelivering: {StatusDelivered, StatusFailed},
	StatusDelivered:  {},
	StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Record tracks the delivery of one task.
type Record struct {
	mu sync.RWMutex

	// ID is the task ID.
	ID string
	// Kind is the artifact type.
	Kind storage.Kind
	// Timestamp names the artifact in storage.
	Timestamp string
	// Size is the payload size in bytes; -1 for streaming tasks until delivered.
	Size int
	// Streaming is true when the task was delivered from a live stream.
	Streaming bool
	// Status is the current delivery state.
	Status Status
	// Location is where the artifact was stored (object key or file path).
	Location string
	// Error contains the failure message if delivery failed.
	Error string
	// Attempts counts store calls made for this task.
	Attempts int
	// EnqueuedAt is when the task was queued.
	EnqueuedAt time.Time
	// StartedAt is when delivery started.
	StartedAt time.Time
	// CompletedAt is when delivery finished.
	CompletedAt time.Time
}

// NewRecord creates a QUEUED record for task.
func NewRecord(task Task) *Record {
	size := len(task.Payload)
	if task.Streaming() {
		size = -1
	}
	return &Record{
		ID:         task.ID,
		Kind:       task.Kind,
		Timestamp:  task.Timestamp,
		Size:       size,
		Streaming:  task.Streaming(),
		Status:     StatusQueued,
		EnqueuedAt: task.EnqueuedAt,
	}
}

// TransitionTo attempts to change the delivery status.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Record) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	now := time.Now()
	switch status {
	case StatusDelivering:
		r.StartedAt = now
	case StatusDelivered, StatusFailed:
		r.CompletedAt = now
	}

	return nil
}

// Start transitions the record from QUEUED to DELIVERING.
func (r *Record) Start() error {
	return r.TransitionTo(StatusDelivering)
}

// AddAttempt counts one store call.
func (r *Record) AddAttempt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Attempts++
}

// Complete transitions the record to DELIVERED with the stored location.
func (r *Record) Complete(location string, size int) error {
	r.mu.Lock()
	r.Location = location
	if r.Streaming {
		r.Size = size
	}
	r.mu.Unlock()
	return r.TransitionTo(StatusDelivered)
}

// Fail transitions the record to FAILED with an error message.
func (r *Record) Fail(errMsg string) error {
	r.mu.Lock()
	r.Error = errMsg
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// GetStatus returns the current status (thread-safe).
func (r *Record) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if delivery has concluded.
func (r *Record) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusDelivered || r.Status == StatusFailed
}

// Duration returns how long delivery took, or zero if it has not concluded.
func (r *Record) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Clone creates a copy of the record for safe reads.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return &Record{
		ID:          r.ID,
		Kind:        r.Kind,
		Timestamp:   r.Timestamp,
		Size:        r.Size,
		Streaming:   r.Streaming,
		Status:      r.Status,
		Location:    r.Location,
		Error:       r.Error,
		Attempts:    r.Attempts,
		EnqueuedAt:  r.EnqueuedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}
