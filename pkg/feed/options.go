package feed

import (
	"log/slog"

	"github.com/jsmonitor/livesync/pkg/clock"
	"github.com/jsmonitor/livesync/pkg/eventloop"
	"github.com/jsmonitor/livesync/pkg/telemetry"
)

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for reconnect timers.
// Default: clock.Real().
func WithClock(c clock.Clock) Option {
	return func(cl *Client) {
		if c != nil {
			cl.clock = c
		}
	}
}

// WithExecutor sets the event loop the client's handlers run on.
// Default: a dedicated eventloop.Loop, stopped by Close.
func WithExecutor(exec eventloop.Executor) Option {
	return func(cl *Client) {
		if exec != nil {
			cl.exec = exec
		}
	}
}

// WithBackoff sets the reconnect policy. Default: DefaultBackoff().
func WithBackoff(b Backoff) Option {
	return func(cl *Client) {
		cl.backoff = b
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// WithStateHandler registers fn to observe state changes. fn runs on the
// event loop and must not call blocking Client methods.
func WithStateHandler(fn func(State)) Option {
	return func(cl *Client) {
		cl.onState = fn
	}
}

// WithMetrics records feed metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithTracer traces connection attempts.
func WithTracer(t *telemetry.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = t
	}
}
