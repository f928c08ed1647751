// Package activity implements the voice activity gate: a hysteresis state
// machine over per-chunk loudness that decides when a recording session
// starts and stops.
package activity

import (
	"math"
	"sync"
	"time"
)

// Defaults for Config.
const (
	DefaultThreshold    = 50.0
	DefaultReleaseGrace = 2000 * time.Millisecond
)

// State is the detector state.
type State int

const (
	// StateIdle means no voice is present and no session is open.
	StateIdle State = iota
	// StateActive means the last observed level was above the threshold.
	StateActive
	// StateReleasing means the level dropped to or below the threshold and a
	// release timer is armed.
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Event is the outcome of feeding the detector.
type Event int

const (
	// EventNone means the session lifecycle is unchanged.
	EventNone Event = iota
	// EventStart means a recording session should start.
	EventStart
	// EventStop means the current recording session should stop.
	EventStop
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	default:
		return "none"
	}
}

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateIdle:      {StateActive},
	StateActive:    {StateReleasing, StateIdle},
	StateReleasing: {StateActive, StateIdle},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Config configures a Detector.
type Config struct {
	// Threshold is the level (dB) separating silence from speech. Levels
	// strictly above it count as speech.
	Threshold float64
	// ReleaseGrace is how long the level must stay at or below the threshold
	// before the session stops.
	ReleaseGrace time.Duration
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:    DefaultThreshold,
		ReleaseGrace: DefaultReleaseGrace,
	}
}

// Detector is the hysteresis gate. Observe and Expire must be called from a
// single goroutine (the monitor loop); State may be read concurrently.
type Detector struct {
	cfg   Config
	clock Clock

	mu    sync.RWMutex
	state State
	timer Timer
}

// NewDetector creates a Detector in StateIdle. A nil clock uses RealClock.
func NewDetector(cfg Config, clock Clock) *Detector {
	if cfg.ReleaseGrace <= 0 {
		cfg.ReleaseGrace = DefaultReleaseGrace
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Detector{cfg: cfg, clock: clock, state: StateIdle}
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// above reports whether level counts as speech. Non-finite levels never do.
func (d *Detector) above(level float64) bool {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return false
	}
	return level > d.cfg.Threshold
}

// Observe feeds one monitor chunk's level into the gate.
//
//	idle,      level > T  -> active     (EventStart)
//	active,    level <= T -> releasing  (arm release timer)
//	releasing, level > T  -> active     (cancel timer, same session)
//
// Every other combination leaves the state unchanged.
func (d *Detector) Observe(level float64) Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	speech := d.above(level)
	switch d.state {
	case StateIdle:
		if speech {
			d.transitionTo(StateActive)
			return EventStart
		}
	case StateActive:
		if !speech {
			d.timer = d.clock.NewTimer(d.cfg.ReleaseGrace)
			d.transitionTo(StateReleasing)
		}
	case StateReleasing:
		if speech {
			d.stopTimer()
			d.transitionTo(StateActive)
		}
	}
	return EventNone
}

// Expired returns the channel of the armed release timer, or nil when no
// timer is armed. A nil channel blocks forever in a select, so callers can
// select on it unconditionally and call Expire when it fires.
func (d *Detector) Expired() <-chan time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.timer == nil {
		return nil
	}
	return d.timer.C()
}

// Expire handles the release timer firing: releasing -> idle (EventStop).
// In any other state the expiry is stale and ignored.
func (d *Detector) Expire() Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReleasing {
		return EventNone
	}
	d.timer = nil
	d.transitionTo(StateIdle)
	return EventStop
}

// Halt forces the detector back to idle, cancelling any armed timer. It
// returns EventStop if a session was in progress. Used at shutdown.
func (d *Detector) Halt() Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateIdle {
		return EventNone
	}
	d.stopTimer()
	d.transitionTo(StateIdle)
	return EventStop
}

func (d *Detector) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// transitionTo changes state. Callers hold d.mu. An invalid transition is a
// programming error.
func (d *Detector) transitionTo(to State) {
	if !canTransition(d.state, to) {
		panic("activity: invalid transition from " + d.state.String() + " to " + to.String())
	}
	d.state = to
}
