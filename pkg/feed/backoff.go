package feed

import (
	"time"

	"github.com/jsmonitor/livesync/internal/errors"
)

// Default backoff bounds.
const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// Backoff is an uncapped-retry exponential backoff policy. The delay before
// reconnect attempt n is min(Max, Initial * 2^n).
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff returns the 1s to 30s policy.
func DefaultBackoff() Backoff {
	return Backoff{Initial: DefaultInitialDelay, Max: DefaultMaxDelay}
}

// Delay returns the wait before the given attempt. Negative attempts are
// treated as zero.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		if d > b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Validate checks 0 < Initial <= Max.
func (b Backoff) Validate() error {
	if b.Initial <= 0 || b.Max < b.Initial {
		return errors.New("E203").
			WithDetailf("initial=%s max=%s", b.Initial, b.Max).
			WithSuggestion("Use an initial delay such as 1s and a maximum such as 30s.")
	}
	return nil
}
