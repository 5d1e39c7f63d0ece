package transport

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinel errors.
var (
	// ErrNotOpen is returned by Send when the transport is not open.
	ErrNotOpen = errors.New("transport: not open")

	// ErrClosed is returned by Send after Close. It matches ErrNotOpen.
	ErrClosed = fmt.Errorf("%w: closed", ErrNotOpen)

	// ErrSendQueueFull is returned by Send when the outgoing queue is full.
	ErrSendQueueFull = errors.New("transport: send queue full")
)

// DefaultCredentialParam is the query parameter carrying the credential.
const DefaultCredentialParam = "key"

// Handler receives transport lifecycle events. Nil fields are skipped.
type Handler struct {
	OnOpen    func()
	OnMessage func(payload []byte)
	OnError   func(err error)
	OnClose   func()
}

func (h Handler) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handler) message(payload []byte) {
	if h.OnMessage != nil {
		h.OnMessage(payload)
	}
}

func (h Handler) error(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Handler) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

// Transport is one duplex message connection.
type Transport interface {
	// Open starts connecting. Completion is reported through OnOpen.
	Open()

	// Send queues one text message.
	Send(payload []byte) error

	// Close tears the connection down. Idempotent.
	Close()

	// IsOpen reports whether Send can currently succeed.
	IsOpen() bool
}

// Dialer creates transports. Dial only constructs; the caller opens.
type Dialer interface {
	Dial(endpoint Endpoint, handler Handler) Transport
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(endpoint Endpoint, handler Handler) Transport

// Dial calls f.
func (f DialerFunc) Dial(endpoint Endpoint, handler Handler) Transport {
	return f(endpoint, handler)
}

// Endpoint is a connection target: a WebSocket URL plus an optional
// opaque credential passed as a query parameter.
type Endpoint struct {
	URL string

	// CredentialParam is the query parameter name. Default: "key".
	CredentialParam string

	// Credential is passed through uninterpreted. Empty means none.
	Credential string
}

// Validate checks that URL is an absolute ws, wss, http or https URL.
func (e Endpoint) Validate() error {
	if e.URL == "" {
		return errors.New("transport: endpoint URL is empty")
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return errors.New("transport: unsupported URL scheme " + u.Scheme)
	}
	if u.Host == "" {
		return errors.New("transport: endpoint URL has no host")
	}
	return nil
}

// String returns the URL to dial, credential included. http and https
// schemes are mapped to ws and wss.
func (e Endpoint) String() string {
	return e.build(e.Credential)
}

// Redacted returns the URL with the credential masked, for logs.
func (e Endpoint) Redacted() string {
	if e.Credential == "" {
		return e.build("")
	}
	return e.build("xxxxx")
}

func (e Endpoint) build(credential string) string {
	u, err := url.Parse(e.URL)
	if err != nil {
		return e.URL
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if credential != "" {
		param := e.CredentialParam
		if param == "" {
			param = DefaultCredentialParam
		}
		q := u.Query()
		q.Set(param, credential)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
