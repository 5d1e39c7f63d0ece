package transport

import (
	"sync"
)

// FakeDialer is an in-memory Dialer for tests. It records every transport
// it creates, in dial order.
type FakeDialer struct {
	mu         sync.Mutex
	transports []*Fake
}

// NewFakeDialer returns an empty FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// Dial returns a new Fake bound to handler.
func (d *FakeDialer) Dial(endpoint Endpoint, handler Handler) Transport {
	f := &Fake{endpoint: endpoint, handler: handler}
	d.mu.Lock()
	d.transports = append(d.transports, f)
	d.mu.Unlock()
	return f
}

// Count returns the number of transports dialed so far.
func (d *FakeDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// Transports returns every dialed transport, oldest first.
func (d *FakeDialer) Transports() []*Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Fake, len(d.transports))
	copy(out, d.transports)
	return out
}

// Last returns the most recently dialed transport, or nil.
func (d *FakeDialer) Last() *Fake {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// Fake is a scripted Transport. Nothing happens on its own: tests drive
// the lifecycle with Accept, Deliver, Fail and Drop, which invoke the
// handler synchronously on the calling goroutine.
//
// The driver methods deliver even after the fake is closed so tests can
// simulate late events from a superseded connection.
type Fake struct {
	endpoint Endpoint
	handler  Handler

	mu        sync.Mutex
	opened    int
	open      bool
	closed    bool
	closes    int
	sent      [][]byte
	sendError error
}

// Endpoint returns the endpoint the fake was dialed with.
func (f *Fake) Endpoint() Endpoint {
	return f.endpoint
}

// Open records the call. Use Accept to complete the connection.
func (f *Fake) Open() {
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
}

// Send records payload when open.
func (f *Fake) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if !f.open {
		return ErrNotOpen
	}
	if f.sendError != nil {
		return f.sendError
	}
	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

// Close marks the fake closed and fires OnClose the first time.
func (f *Fake) Close() {
	f.mu.Lock()
	f.closes++
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.open = false
	f.mu.Unlock()

	f.handler.close()
}

// IsOpen reports whether Accept was called and the fake is not closed.
func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Accept completes the connection and fires OnOpen.
func (f *Fake) Accept() {
	f.mu.Lock()
	if !f.closed {
		f.open = true
	}
	f.mu.Unlock()

	f.handler.open()
}

// Deliver fires OnMessage with payload.
func (f *Fake) Deliver(payload []byte) {
	f.handler.message(payload)
}

// DeliverString fires OnMessage with s.
func (f *Fake) DeliverString(s string) {
	f.Deliver([]byte(s))
}

// Fail fires OnError followed by OnClose. It does not deduplicate, so a
// test can replay terminal events on a transport that already closed.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.closed = true
	f.open = false
	f.mu.Unlock()

	f.handler.error(err)
	f.handler.close()
}

// FailOnly fires OnError without the following OnClose.
func (f *Fake) FailOnly(err error) {
	f.handler.error(err)
}

// Drop simulates a remote closure: OnClose without OnError.
func (f *Fake) Drop() {
	f.mu.Lock()
	f.closed = true
	f.open = false
	f.mu.Unlock()

	f.handler.close()
}

// SetSendError makes subsequent Sends on an open fake fail with err.
func (f *Fake) SetSendError(err error) {
	f.mu.Lock()
	f.sendError = err
	f.mu.Unlock()
}

// Opened reports whether Open was called.
func (f *Fake) Opened() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened > 0
}

// Closed reports whether the fake reached its closed state.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// CloseCalls returns how many times Close was called.
func (f *Fake) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Sent returns copies of every payload accepted by Send.
func (f *Fake) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	for i, p := range f.sent {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// SentStrings returns Sent as strings.
func (f *Fake) SentStrings() []string {
	sent := f.Sent()
	out := make([]string, len(sent))
	for i, p := range sent {
		out[i] = string(p)
	}
	return out
}
