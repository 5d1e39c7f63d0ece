package console

import (
	"log/slog"

	"github.com/jsmonitor/livesync/pkg/eventloop"
	"github.com/jsmonitor/livesync/pkg/telemetry"
)

// Option configures a Session.
type Option func(*Session)

// WithTitle sets the server name used in the opening transcript line.
// Default: "server <id>".
func WithTitle(title string) Option {
	return func(s *Session) {
		if title != "" {
			s.title = title
		}
	}
}

// WithExecutor sets the event loop the session runs on.
// Default: a dedicated eventloop.Loop, stopped by Close.
func WithExecutor(exec eventloop.Executor) Option {
	return func(s *Session) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLineHandler registers fn to receive each transcript line as it is
// appended. fn runs on the event loop and must not call blocking Session
// methods.
func WithLineHandler(fn func(LogLine)) Option {
	return func(s *Session) {
		s.onLine = fn
	}
}

// WithStateHandler registers fn to observe state changes. fn runs on the
// event loop and must not call blocking Session methods.
func WithStateHandler(fn func(State)) Option {
	return func(s *Session) {
		s.onState = fn
	}
}

// WithErrorSink registers fn to receive server and connection error text,
// for toast-style notifications.
func WithErrorSink(fn func(text string)) Option {
	return func(s *Session) {
		s.errorSink = fn
	}
}

// WithMetrics records console metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTracer traces the session.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}
