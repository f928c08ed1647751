package activity

import "time"

// Clock creates the release timers used by the Detector. It exists so tests
// can drive the hysteresis deterministically.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer.
type Timer interface {
	// C delivers the expiry time once.
	C() <-chan time.Time
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// RealClock is a Clock backed by the time package.
type RealClock struct{}

// NewTimer returns a Timer wrapping time.NewTimer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }
