// Package recording owns the chunk accumulation for one continuous speech
// episode and finalizes it into a single payload.
package recording

import (
	"errors"
	"io"
	"sync"
	"time"
)

// Static errors for session lifecycle misuse.
var (
	// ErrNoSession is returned when Append or Finalize is called without an
	// open session.
	ErrNoSession = errors.New("recording: no open session")
	// ErrSessionOpen is returned when Begin is called while a session is open.
	ErrSessionOpen = errors.New("recording: session already open")
)

// Mode selects how a finalized session reaches storage.
type Mode string

const (
	// ModeBuffered accumulates chunks in memory and hands over one contiguous
	// payload on Finalize.
	ModeBuffered Mode = "buffered"
	// ModeStreaming exposes the session as a reader from Begin onwards, so
	// delivery can start while the episode is still being captured.
	ModeStreaming Mode = "streaming"
)

// IsValid returns true if the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeBuffered || m == ModeStreaming
}

// Started describes a freshly opened session.
type Started struct {
	// Start is the session start time.
	Start time.Time
	// Seq identifies the session for AppendTo.
	Seq uint64
	// Stream yields the session bytes in arrival order until Finalize. It is
	// nil in ModeBuffered.
	Stream io.Reader
}

// Result is a finalized session.
type Result struct {
	// Start is the original session start time.
	Start time.Time
	// Payload is the concatenation of all chunks in arrival order. It is
	// empty, not nil, for a session without chunks, and nil in ModeStreaming.
	Payload []byte
	// Chunks is the number of appended chunks.
	Chunks int
	// Bytes is the total number of appended bytes.
	Bytes int
	// Streamed is true when the bytes were delivered through Started.Stream.
	Streamed bool
}

// Duration returns the time between the session start and end.
func (r Result) Duration(end time.Time) time.Duration {
	return end.Sub(r.Start)
}

type session struct {
	seq    uint64
	start  time.Time
	chunks [][]byte
	count  int
	bytes  int
	pipe   *pipe
}

// Recorder holds at most one open session. Append and Finalize are
// serialized by a single lock, so the capture callback and the stop path may
// run on different goroutines.
type Recorder struct {
	mode Mode
	now  func() time.Time

	mu      sync.Mutex
	seq     uint64
	current *session
}

// NewRecorder creates a Recorder. An invalid mode falls back to
// ModeBuffered; a nil now uses time.Now.
func NewRecorder(mode Mode, now func() time.Time) *Recorder {
	if !mode.IsValid() {
		mode = ModeBuffered
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{mode: mode, now: now}
}

// Mode returns the finalize strategy.
func (r *Recorder) Mode() Mode {
	return r.mode
}

// Open reports whether a session is open.
func (r *Recorder) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Begin captures the start time and opens an empty session.
func (r *Recorder) Begin() (Started, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		return Started{}, ErrSessionOpen
	}

	r.seq++
	s := &session{seq: r.seq, start: r.now()}
	started := Started{Start: s.start, Seq: s.seq}
	if r.mode == ModeStreaming {
		s.pipe = newPipe()
		started.Stream = s.pipe
	}
	r.current = s
	return started, nil
}

// Append adds a chunk to the open session. The chunk is copied, so callers
// may reuse their buffer.
func (r *Recorder) Append(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendLocked(r.current, chunk)
}

// AppendTo is like Append but only accepts the chunk while the session
// identified by seq is still the open one. Late chunks from a feed that
// belonged to an earlier session get ErrNoSession.
func (r *Recorder) AppendTo(seq uint64, chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil || r.current.seq != seq {
		return ErrNoSession
	}
	return r.appendLocked(r.current, chunk)
}

func (r *Recorder) appendLocked(s *session, chunk []byte) error {
	if s == nil {
		return ErrNoSession
	}

	s.count++
	s.bytes += len(chunk)
	if s.pipe != nil {
		_, _ = s.pipe.Write(chunk)
		return nil
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.chunks = append(s.chunks, c)
	return nil
}

// Finalize closes the open session and discards it. In ModeBuffered the
// chunks are concatenated in arrival order into Result.Payload; in
// ModeStreaming the stream is ended with io.EOF.
func (r *Recorder) Finalize() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.current
	if s == nil {
		return Result{}, ErrNoSession
	}
	r.current = nil

	res := Result{
		Start:  s.start,
		Chunks: s.count,
		Bytes:  s.bytes,
	}

	if s.pipe != nil {
		_ = s.pipe.Close()
		res.Streamed = true
		return res, nil
	}

	payload := make([]byte, 0, s.bytes)
	for _, c := range s.chunks {
		payload = append(payload, c...)
	}
	res.Payload = payload
	return res, nil
}

// Abort discards the open session. A streaming reader fails with err.
// It is a no-op without an open session.
func (r *Recorder) Abort(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}
	if r.current.pipe != nil {
		r.current.pipe.CloseWithError(err)
	}
	r.current = nil
}
