// Package server provides the optional status HTTP server for the recorder.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// ListUploadsQuery holds the query parameters for GET /uploads.
type ListUploadsQuery struct {
	// Limit caps the number of records returned; 0 means all.
	Limit int `validate:"min=0,max=1000"`
	// Status filters records by delivery status.
	Status string `validate:"omitempty,oneof=QUEUED DELIVERING DELIVERED FAILED"`
	// Kind filters records by artifact type.
	Kind string `validate:"omitempty,oneof=audio screenshot webcam"`
}

// UploadResponse is the HTTP representation of one delivery record.
type UploadResponse struct {
	// ID is the unique identifier of the upload task.
	ID string `json:"id"`
	// Kind is the artifact type (audio, screenshot, webcam).
	Kind string `json:"kind"`
	// Timestamp names the artifact in storage.
	Timestamp string `json:"timestamp"`
	// Status is the delivery state.
	Status string `json:"status"`
	// Location is the object key or file path once delivered.
	Location string `json:"location,omitempty"`
	// Size is the payload size in bytes; -1 while a stream is in progress.
	Size int `json:"size"`
	// Streaming is true for recordings delivered while being captured.
	Streaming bool `json:"streaming"`
	// Attempts is the number of store calls made.
	Attempts int `json:"attempts"`
	// Error contains the failure message if delivery failed.
	Error string `json:"error,omitempty"`
	// EnqueuedAt is when the task was queued.
	EnqueuedAt time.Time `json:"enqueued_at"`
	// CompletedAt is when delivery concluded.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// DurationMs is the delivery time in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// UploadListResponse is the HTTP response for GET /uploads.
type UploadListResponse struct {
	Uploads []UploadResponse `json:"uploads"`
	Count   int              `json:"count"`
}

// StatusResponse is the HTTP response for GET /status.
type StatusResponse struct {
	// Running is true while the pipeline is capturing.
	Running bool `json:"running"`
	// DetectorState is idle, active or releasing.
	DetectorState string `json:"detector_state"`
	// SessionOpen is true while a recording session is open.
	SessionOpen bool `json:"session_open"`
	// Mode is the audio delivery mode.
	Mode string `json:"mode"`
	// QueueDepth is the number of tasks waiting for delivery.
	QueueDepth int `json:"queue_depth"`
	// UploadInFlight is true while a store call is running.
	UploadInFlight bool `json:"upload_in_flight"`
	// Sessions counts finalized recording sessions.
	Sessions int64 `json:"sessions"`
	// LastError is the most recent capture or finalize error.
	LastError string `json:"last_error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health and readiness checks.
type HealthResponse struct {
	// Status is "ok" or "fail".
	Status string `json:"status"`
	// Checks holds the result of each readiness check.
	Checks map[string]string `json:"checks,omitempty"`
}
