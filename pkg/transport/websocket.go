package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/telemetry"
)

// Config holds WebSocket connection settings.
type Config struct {
	// HandshakeTimeout bounds dialing plus the WebSocket upgrade.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadTimeout is the maximum silence (no frame and no pong) before
	// the connection is considered dead. Default: 60 seconds.
	ReadTimeout time.Duration

	// PingInterval is the time between keepalive pings. It must be
	// shorter than ReadTimeout. Default: 30 seconds.
	PingInterval time.Duration

	// MaxMessageSize is the maximum size of an incoming frame.
	// Default: 64KB.
	MaxMessageSize int64

	// SendQueue is the outgoing frame buffer. Default: 64.
	SendQueue int

	// Header is sent with the upgrade request.
	Header http.Header
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendQueue:        64,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = d.HandshakeTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.PingInterval <= 0 || out.PingInterval >= out.ReadTimeout {
		out.PingInterval = out.ReadTimeout / 2
	}
	if out.MaxMessageSize <= 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.SendQueue <= 0 {
		out.SendQueue = d.SendQueue
	}
	return &out
}

// WebSocketDialer dials gorilla/websocket connections.
type WebSocketDialer struct {
	config  *Config
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// DialerOption configures a WebSocketDialer.
type DialerOption func(*WebSocketDialer)

// WithLogger sets the dialer's logger.
func WithLogger(logger *slog.Logger) DialerOption {
	return func(d *WebSocketDialer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records frame and error counters.
func WithMetrics(m *telemetry.Metrics) DialerOption {
	return func(d *WebSocketDialer) {
		d.metrics = m
	}
}

// WithWebSocketDialer replaces the underlying gorilla dialer (proxy, TLS).
func WithWebSocketDialer(wd *websocket.Dialer) DialerOption {
	return func(d *WebSocketDialer) {
		if wd != nil {
			d.dialer = wd
		}
	}
}

// NewWebSocketDialer creates a dialer. A nil config uses DefaultConfig.
func NewWebSocketDialer(config *Config, opts ...DialerOption) *WebSocketDialer {
	cfg := config.withDefaults()
	d := &WebSocketDialer{
		config: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: slog.Default().With("component", "transport"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial returns an unopened WebSocket transport.
func (d *WebSocketDialer) Dial(endpoint Endpoint, handler Handler) Transport {
	return &wsTransport{
		dialer:   d,
		endpoint: endpoint,
		handler:  handler,
		logger:   d.logger.With("endpoint", endpoint.Redacted()),
		send:     make(chan []byte, d.config.SendQueue),
		done:     make(chan struct{}),
	}
}

type wsState int

const (
	wsIdle wsState = iota
	wsDialing
	wsOpen
	wsClosed
)

type wsTransport struct {
	dialer   *WebSocketDialer
	endpoint Endpoint
	handler  Handler
	logger   *slog.Logger

	mu     sync.Mutex
	state  wsState
	conn   *websocket.Conn
	cancel context.CancelFunc
	send   chan []byte
	done   chan struct{}

	// emitMu serialises handler calls so OnOpen, OnMessage and the
	// terminal OnError/OnClose pair are never interleaved or reordered.
	emitMu   sync.Mutex
	finished bool
}

// Open dials in the background.
func (t *wsTransport) Open() {
	t.mu.Lock()
	if t.state != wsIdle {
		t.mu.Unlock()
		return
	}
	t.state = wsDialing
	ctx, cancel := context.WithTimeout(context.Background(), t.dialer.config.HandshakeTimeout)
	t.cancel = cancel
	t.mu.Unlock()

	go t.dial(ctx, cancel)
}

func (t *wsTransport) dial(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	conn, resp, err := t.dialer.dialer.DialContext(ctx, t.endpoint.String(), t.dialer.config.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.dialer.metrics.RecordTransportError("dial")
		t.fail(errors.New("E300").WithDetailf("dial %s", t.endpoint.Redacted()).Wrap(err))
		return
	}

	t.mu.Lock()
	if t.state != wsDialing {
		// Closed while dialing.
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.state = wsOpen
	t.mu.Unlock()

	conn.SetReadLimit(t.dialer.config.MaxMessageSize)
	t.logger.Debug("connected")

	if !t.emitOpen() {
		return
	}
	go t.writePump(conn)
	go t.readPump(conn)
}

func (t *wsTransport) readPump(conn *websocket.Conn) {
	timeout := t.dialer.config.ReadTimeout
	conn.SetReadDeadline(time.Now().Add(timeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.fail(nil)
				return
			}
			t.dialer.metrics.RecordTransportError("read")
			t.fail(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(timeout))
		t.dialer.metrics.RecordFrame("in", len(msg))

		if kind != websocket.TextMessage {
			t.logger.Debug("dropping non-text frame", "type", kind, "bytes", len(msg))
			continue
		}
		t.emitMessage(msg)
	}
}

func (t *wsTransport) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(t.dialer.config.PingInterval)
	defer ticker.Stop()

	writeTimeout := t.dialer.config.WriteTimeout
	for {
		select {
		case msg := <-t.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.dialer.metrics.RecordTransportError("write")
				t.fail(err)
				return
			}
			t.dialer.metrics.RecordFrame("out", len(msg))

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.dialer.metrics.RecordTransportError("ping")
				t.fail(err)
				return
			}

		case <-t.done:
			return
		}
	}
}

// Send queues payload for the write pump. It never blocks.
func (t *wsTransport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case wsOpen:
	case wsClosed:
		t.logger.Debug("send on closed transport")
		return ErrClosed
	default:
		t.logger.Debug("send on transport that is not open")
		return ErrNotOpen
	}
	select {
	case t.send <- payload:
		return nil
	default:
		t.logger.Warn("send queue full, dropping frame", "bytes", len(payload))
		return ErrSendQueueFull
	}
}

// IsOpen reports whether the connection is established.
func (t *wsTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == wsOpen
}

// Close performs a normal closure. OnClose is delivered asynchronously.
func (t *wsTransport) Close() {
	conn, ok := t.markClosed()
	if !ok {
		return
	}
	if conn != nil {
		deadline := time.Now().Add(t.dialer.config.WriteTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	go t.finish(nil)
}

// fail closes the transport after a failure observed by a pump or the
// dialer. A nil err is a clean remote closure.
func (t *wsTransport) fail(err error) {
	conn, ok := t.markClosed()
	if !ok {
		return
	}
	if conn != nil {
		conn.Close()
	}
	if err != nil {
		t.logger.Debug("connection failed", "error", err)
	}
	t.finish(err)
}

// markClosed moves the transport to its closed state. It returns false if
// it was already closed.
func (t *wsTransport) markClosed() (*websocket.Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == wsClosed {
		return nil, false
	}
	t.state = wsClosed
	if t.cancel != nil {
		t.cancel()
	}
	close(t.done)
	return t.conn, true
}

func (t *wsTransport) emitOpen() bool {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if t.finished {
		return false
	}
	t.handler.open()
	return true
}

func (t *wsTransport) emitMessage(msg []byte) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if t.finished {
		return
	}
	t.handler.message(msg)
}

// finish delivers the terminal events exactly once.
func (t *wsTransport) finish(err error) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if t.finished {
		return
	}
	t.finished = true
	if err != nil {
		t.handler.error(err)
	}
	t.handler.close()
}

