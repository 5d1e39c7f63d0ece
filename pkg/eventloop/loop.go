package eventloop

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultQueueSize is the buffer size of a Loop's work queue.
const DefaultQueueSize = 256

// Executor runs functions serially.
type Executor interface {
	// Post queues fn and returns immediately.
	Post(fn func())

	// Do runs fn and waits for it to return. Do must not be called from
	// a function already running on the same executor.
	Do(fn func())
}

// Loop is an Executor backed by one goroutine.
type Loop struct {
	queue  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithQueueSize sets the work queue buffer size.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queue = make(chan func(), n)
		}
	}
}

// New creates a Loop and starts its goroutine.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue:  make(chan func(), DefaultQueueSize),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "eventloop"),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-l.done:
			return
		}
	}
}

// execute runs fn, recovering and logging a panic so one misbehaving
// callback does not take the loop down.
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Post queues fn. It blocks while the queue is full and drops fn once the
// loop has been stopped.
func (l *Loop) Post(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it to finish. It returns without
// running fn if the loop is stopped.
func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.queue <- wrapped:
	case <-l.done:
		return
	}
	select {
	case <-finished:
	case <-l.done:
	}
}

// Stop terminates the loop goroutine. Queued functions that have not
// started are discarded. Stop is idempotent.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed when the loop has been stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Inline is an Executor that runs every function immediately on the
// calling goroutine.
var Inline Executor = inline{}

type inline struct{}

func (inline) Post(fn func()) { fn() }
func (inline) Do(fn func())   { fn() }
