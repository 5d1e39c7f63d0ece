package feed

import (
	stderrors "errors"
	"log/slog"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/clock"
	"github.com/jsmonitor/livesync/pkg/eventloop"
	"github.com/jsmonitor/livesync/pkg/protocol"
	"github.com/jsmonitor/livesync/pkg/status"
	"github.com/jsmonitor/livesync/pkg/telemetry"
	"github.com/jsmonitor/livesync/pkg/transport"
)

// MergeFunc receives each decoded status delta. It reports whether
// serverID matched a known record. status.Store.Apply satisfies it.
type MergeFunc func(serverID int64, st status.Status) bool

// Client is a reconnecting feed subscriber.
//
// All fields below the options are owned by the event loop.
type Client struct {
	dialer   transport.Dialer
	endpoint transport.Endpoint
	merge    MergeFunc

	backoff Backoff
	clock   clock.Clock
	exec    eventloop.Executor
	ownLoop *eventloop.Loop
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	onState func(State)

	state      State
	attempt    int
	generation uint64
	current    transport.Transport
	timer      *clock.Timer
	span       telemetry.Span
	started    bool
	closed     bool
}

// New creates a Client. It does not connect until Start.
func New(dialer transport.Dialer, endpoint transport.Endpoint, merge MergeFunc, opts ...Option) (*Client, error) {
	if dialer == nil {
		return nil, errors.New("E200")
	}
	if err := endpoint.Validate(); err != nil {
		return nil, errors.New("E201").
			WithDetailf("feed endpoint %q", endpoint.Redacted()).
			Wrap(err)
	}
	if merge == nil {
		return nil, errors.New("E202")
	}

	c := &Client{
		dialer:   dialer,
		endpoint: endpoint,
		merge:    merge,
		backoff:  DefaultBackoff(),
		clock:    clock.Real(),
		logger:   slog.Default().With("component", "feed"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.backoff.Validate(); err != nil {
		return nil, err
	}
	if c.exec == nil {
		c.ownLoop = eventloop.New(eventloop.WithLogger(c.logger))
		c.exec = c.ownLoop
	}
	return c, nil
}

// Start dials the first transport. Calling Start again, or after Close,
// does nothing.
func (c *Client) Start() {
	c.exec.Do(func() {
		if c.started || c.closed {
			return
		}
		c.started = true
		c.logger.Info("feed starting", "endpoint", c.endpoint.Redacted())
		c.connect()
	})
}

// Close tears the client down. It is idempotent.
func (c *Client) Close() {
	c.exec.Do(c.teardown)
	if c.ownLoop != nil {
		c.ownLoop.Stop()
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	var s State
	c.exec.Do(func() { s = c.state })
	return s
}

// Attempt returns the number of consecutive failed connections since the
// last successful open.
func (c *Client) Attempt() int {
	var n int
	c.exec.Do(func() { n = c.attempt })
	return n
}

// connect dials a fresh transport. Runs on the loop.
func (c *Client) connect() {
	c.generation++
	gen := c.generation

	c.setState(Connecting)
	c.span = c.tracer.Start(telemetry.SpanFeedConnect,
		telemetry.AttrEndpoint.String(c.endpoint.Redacted()),
		telemetry.AttrAttempt.Int(c.attempt),
	)

	t := c.dialer.Dial(c.endpoint, transport.Handler{
		OnOpen: func() {
			c.exec.Post(func() { c.handleOpen(gen) })
		},
		OnMessage: func(payload []byte) {
			c.exec.Post(func() { c.handleMessage(gen, payload) })
		},
		OnError: func(err error) {
			c.exec.Post(func() { c.handleDown(gen, err) })
		},
		OnClose: func() {
			c.exec.Post(func() { c.handleDown(gen, nil) })
		},
	})
	c.current = t
	t.Open()
}

// stale reports whether an event for gen must be ignored.
func (c *Client) stale(gen uint64) bool {
	return c.closed || gen != c.generation
}

func (c *Client) handleOpen(gen uint64) {
	if c.stale(gen) || c.state != Connecting {
		return
	}
	c.attempt = 0
	c.setState(Connected)
	c.span.Event("open")
	c.span.End(nil)
	c.span = telemetry.Span{}
	c.logger.Info("feed connected")
}

func (c *Client) handleMessage(gen uint64, payload []byte) {
	if c.stale(gen) {
		return
	}
	upd, err := protocol.DecodeFeedMessage(payload)
	if err != nil {
		reason := "malformed"
		if stderrors.Is(err, protocol.ErrUnknownType) {
			reason = "unknown_type"
		}
		c.metrics.RecordDropped(reason)
		c.logger.Debug("feed frame dropped", "reason", reason, "error", err)
		return
	}
	applied := c.merge(upd.ServerID, upd.Status)
	c.metrics.RecordDelta(applied)
}

// handleDown handles the terminal OnError/OnClose events. Only the first
// one for a live transport schedules a reconnect.
func (c *Client) handleDown(gen uint64, cause error) {
	if c.stale(gen) {
		return
	}
	if c.state != Connecting && c.state != Connected {
		return
	}

	prev := c.state
	c.setState(Disconnected)
	if prev == Connecting {
		if cause == nil {
			cause = errConnectClosed
		}
		c.span.End(cause)
		c.span = telemetry.Span{}
	}

	t := c.current
	c.current = nil
	if t != nil {
		t.Close()
	}

	// Retire the dead transport's generation so its late frames are
	// dropped while the reconnect is pending.
	c.generation++
	next := c.generation

	delay := c.backoff.Delay(c.attempt)
	c.attempt++
	c.timer = c.clock.AfterFunc(delay, func() {
		c.exec.Post(func() { c.reconnect(next) })
	})
	c.metrics.RecordReconnect(delay)

	if cause != nil {
		c.logger.Warn("feed disconnected", "error", cause, "delay", delay, "attempt", c.attempt)
	} else {
		c.logger.Info("feed disconnected", "delay", delay, "attempt", c.attempt)
	}
}

func (c *Client) reconnect(gen uint64) {
	if c.stale(gen) {
		return
	}
	c.timer = nil
	c.connect()
}

func (c *Client) teardown() {
	if c.closed {
		return
	}
	c.closed = true

	c.timer.Stop()
	c.timer = nil

	t := c.current
	c.current = nil
	if t != nil {
		t.Close()
	}
	if c.span.Active() {
		c.span.End(nil)
		c.span = telemetry.Span{}
	}
	c.setState(Disconnected)
	c.logger.Info("feed closed")
}

func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.SetFeedState(int(s))
	if c.onState != nil {
		c.onState(s)
	}
}

var errConnectClosed = stderrors.New("feed: connection closed before open")
