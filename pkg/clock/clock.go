// Package clock abstracts the time operations used by the reconnect
// scheduler so tests can drive timers deterministically.
//
// Production code uses Real(). Tests use Fake() and call Advance to move
// time forward; AfterFunc callbacks whose deadline falls inside the
// advanced window run synchronously, in deadline order, before Advance
// returns.
package clock

import "time"

// Clock is the subset of the time package needed by livesync.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. The returned Timer cancels the
	// pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable scheduled callback.
type Timer struct {
	stop func() bool
}

// Stop prevents the Timer from firing. It returns true if the call stops
// the timer, false if the timer already fired or was already stopped.
// Stop on a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}
