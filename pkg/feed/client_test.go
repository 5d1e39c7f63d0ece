package feed

import (
	stderrors "errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/clock"
	"github.com/jsmonitor/livesync/pkg/eventloop"
	"github.com/jsmonitor/livesync/pkg/status"
	"github.com/jsmonitor/livesync/pkg/telemetry"
	"github.com/jsmonitor/livesync/pkg/transport"
)

var testEndpoint = transport.Endpoint{URL: "ws://localhost:8080/api/v1/ws"}

const update7 = `{"type":"status_update","server_id":7,"status":{"online":true,"players_now":3,"players_max":20,"map":"de_dust2","ping_ms":12}}`

type harness struct {
	t      *testing.T
	dialer *transport.FakeDialer
	clock  *clock.FakeClock
	store  *status.Store
	states []State
	client *Client
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		dialer: transport.NewFakeDialer(),
		clock:  clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		store: status.NewStore(status.Collection{
			{ID: 7, Title: "Alpha", Status: &status.Status{Online: false}},
			{ID: 8, Title: "Beta"},
		}),
	}
	base := []Option{
		WithClock(h.clock),
		WithExecutor(eventloop.Inline),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStateHandler(func(s State) { h.states = append(h.states, s) }),
	}
	c, err := New(h.dialer, testEndpoint, h.store.Apply, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.client = c
	return h
}

// pendingDelay returns the delay of the single scheduled reconnect.
func (h *harness) pendingDelay() time.Duration {
	h.t.Helper()
	if n := h.clock.Pending(); n != 1 {
		h.t.Fatalf("pending timers = %d, want 1", n)
	}
	next, _ := h.clock.NextDeadline()
	return next.Sub(h.clock.Now())
}

func (h *harness) last() *transport.Fake {
	h.t.Helper()
	f := h.dialer.Last()
	if f == nil {
		h.t.Fatal("no transport dialed")
	}
	return f
}

func TestNewValidation(t *testing.T) {
	merge := func(int64, status.Status) bool { return true }
	d := transport.NewFakeDialer()

	tests := []struct {
		name string
		fn   func() error
		code string
	}{
		{"nil dialer", func() error {
			_, err := New(nil, testEndpoint, merge)
			return err
		}, "E200"},
		{"empty url", func() error {
			_, err := New(d, transport.Endpoint{}, merge)
			return err
		}, "E201"},
		{"bad scheme", func() error {
			_, err := New(d, transport.Endpoint{URL: "ftp://x/ws"}, merge)
			return err
		}, "E201"},
		{"nil merge", func() error {
			_, err := New(d, testEndpoint, nil)
			return err
		}, "E202"},
		{"bad backoff", func() error {
			_, err := New(d, testEndpoint, merge, WithExecutor(eventloop.Inline), WithBackoff(Backoff{}))
			return err
		}, "E203"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
	if d.Count() != 0 {
		t.Errorf("construction dialed %d transports", d.Count())
	}
}

func TestStartConnects(t *testing.T) {
	h := newHarness(t)
	if h.dialer.Count() != 0 {
		t.Fatal("New must not dial")
	}

	h.client.Start()
	f := h.last()
	if !f.Opened() {
		t.Fatal("transport not opened")
	}
	if f.Endpoint() != testEndpoint {
		t.Errorf("endpoint = %+v", f.Endpoint())
	}
	if h.client.State() != Connecting {
		t.Errorf("State() = %v, want connecting", h.client.State())
	}

	f.Accept()
	if h.client.State() != Connected {
		t.Errorf("State() = %v, want connected", h.client.State())
	}
	if len(f.Sent()) != 0 {
		t.Errorf("feed sent %v; it must not send anything", f.SentStrings())
	}

	h.client.Start()
	if h.dialer.Count() != 1 {
		t.Errorf("second Start dialed again")
	}
}

func TestFeedMergesStatusUpdate(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Accept()

	h.last().DeliverString(update7)

	r, _ := h.store.Get(7)
	want := status.Status{Online: true, PlayersNow: 3, PlayersMax: 20, Map: "de_dust2", PingMS: 12}
	if r.Status == nil || *r.Status != want {
		t.Fatalf("record 7 status = %+v, want %+v", r.Status, want)
	}
	if r.Title != "Alpha" {
		t.Errorf("static fields changed: %+v", r)
	}
	if other, _ := h.store.Get(8); other.Status != nil {
		t.Errorf("record 8 changed: %+v", other.Status)
	}
}

func TestFeedIgnoresInvalidFrames(t *testing.T) {
	var calls int
	d := transport.NewFakeDialer()
	c, err := New(d, testEndpoint, func(int64, status.Status) bool { calls++; return true },
		WithExecutor(eventloop.Inline),
		WithClock(clock.Fake(time.Unix(0, 0))),
	)
	if err != nil {
		t.Fatal(err)
	}
	c.Start()
	d.Last().Accept()

	for _, frame := range []string{
		`not json`,
		`{"type":"heartbeat"}`,
		`{"type":"status_update","status":{}}`,
		`{"type":"status_update","server_id":7}`,
		`{"type":"status_update","server_id":7,"status":"down"}`,
		`[]`,
	} {
		d.Last().DeliverString(frame)
	}
	if calls != 0 {
		t.Fatalf("merge called %d times for invalid frames", calls)
	}
	if c.State() != Connected {
		t.Errorf("invalid frames changed state to %v", c.State())
	}
}

func TestFeedUnknownServerIsNoop(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Accept()

	before := h.store.Snapshot()
	h.last().DeliverString(`{"type":"status_update","server_id":99,"status":{"online":true}}`)

	after := h.store.Snapshot()
	if &before[0] != &after[0] {
		t.Error("unknown server id replaced the collection")
	}
}

func TestReconnectBackoffSequence(t *testing.T) {
	h := newHarness(t)
	h.client.Start()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		h.last().Drop()
		if got := h.pendingDelay(); got != w {
			t.Fatalf("closure %d: delay = %v, want %v", i+1, got, w)
		}
		if h.client.State() != Disconnected {
			t.Fatalf("closure %d: state = %v", i+1, h.client.State())
		}

		h.clock.Advance(w - time.Millisecond)
		if h.dialer.Count() != i+1 {
			t.Fatalf("closure %d: reconnected early", i+1)
		}
		h.clock.Advance(time.Millisecond)
		if h.dialer.Count() != i+2 {
			t.Fatalf("closure %d: transports = %d, want %d", i+1, h.dialer.Count(), i+2)
		}
	}
	if h.client.Attempt() != len(want) {
		t.Errorf("Attempt() = %d, want %d", h.client.Attempt(), len(want))
	}
}

func TestReconnectResetsAfterOpen(t *testing.T) {
	h := newHarness(t)
	h.client.Start()

	// Three failures: 1s, 2s, 4s.
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		h.last().Fail(stderrors.New("refused"))
		h.clock.Advance(d)
	}

	h.last().Accept()
	if h.client.Attempt() != 0 {
		t.Fatalf("Attempt() after open = %d, want 0", h.client.Attempt())
	}

	h.last().Drop()
	if got := h.pendingDelay(); got != time.Second {
		t.Fatalf("delay after successful open = %v, want 1s", got)
	}
}

func TestEachReconnectUsesNewTransport(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	first := h.last()
	first.Accept()
	first.Drop()
	h.clock.Advance(time.Second)

	second := h.last()
	if second == first {
		t.Fatal("reconnect reused the closed transport")
	}
	if !second.Opened() {
		t.Fatal("new transport not opened")
	}
	if h.client.State() != Connecting {
		t.Errorf("State() = %v, want connecting", h.client.State())
	}
}

func TestErrorThenCloseSchedulesOnce(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Accept()

	h.last().Fail(stderrors.New("reset by peer"))

	if got := h.pendingDelay(); got != time.Second {
		t.Fatalf("delay = %v, want 1s", got)
	}
	if h.client.Attempt() != 1 {
		t.Fatalf("Attempt() = %d, want 1", h.client.Attempt())
	}

	// A replayed close for the same transport changes nothing.
	h.last().Drop()
	if h.clock.Pending() != 1 || h.client.Attempt() != 1 {
		t.Fatalf("pending=%d attempt=%d after duplicate close", h.clock.Pending(), h.client.Attempt())
	}
}

func TestErrorWithoutCloseClosesTransport(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	f := h.last()
	f.Accept()

	f.FailOnly(stderrors.New("protocol error"))

	if !f.Closed() {
		t.Error("failed transport was not closed")
	}
	if h.client.State() != Disconnected || h.clock.Pending() != 1 {
		t.Errorf("state=%v pending=%d", h.client.State(), h.clock.Pending())
	}
}

func TestStaleTransportEventsIgnored(t *testing.T) {
	var merges int
	h := newHarness(t)
	h.client.merge = func(id int64, st status.Status) bool {
		merges++
		return h.store.Apply(id, st)
	}

	h.client.Start()
	old := h.last()
	old.Accept()
	old.Drop()
	h.clock.Advance(time.Second)
	current := h.last()
	current.Accept()

	old.DeliverString(update7)
	if merges != 0 {
		t.Fatal("message from superseded transport was merged")
	}

	old.Accept()
	old.Fail(stderrors.New("late"))
	if h.client.State() != Connected {
		t.Fatalf("stale events changed state to %v", h.client.State())
	}
	if h.clock.Pending() != 0 {
		t.Fatal("stale close scheduled a reconnect")
	}

	current.DeliverString(update7)
	if merges != 1 {
		t.Fatalf("merges = %d, want 1", merges)
	}
}

func TestLateFrameWhileReconnectPendingIgnored(t *testing.T) {
	var merges int
	h := newHarness(t)
	h.client.merge = func(id int64, st status.Status) bool {
		merges++
		return h.store.Apply(id, st)
	}

	h.client.Start()
	first := h.last()
	first.Accept()
	first.Drop()
	if h.client.State() != Disconnected || h.clock.Pending() != 1 {
		t.Fatalf("state=%v pending=%d", h.client.State(), h.clock.Pending())
	}

	first.DeliverString(update7)
	if merges != 0 {
		t.Fatal("frame from closed transport merged while reconnect pending")
	}
	if rec, _ := h.store.Get(7); rec.Status.Online {
		t.Errorf("record 7 changed: %+v", rec.Status)
	}

	first.Fail(stderrors.New("late"))
	if h.clock.Pending() != 1 {
		t.Fatalf("late terminal event scheduled again, pending = %d", h.clock.Pending())
	}

	h.clock.Advance(time.Second)
	if h.dialer.Count() != 2 {
		t.Fatalf("dials = %d, want 2", h.dialer.Count())
	}
	second := h.last()
	second.Accept()
	second.DeliverString(update7)
	if merges != 1 {
		t.Fatalf("merges = %d, want 1", merges)
	}
}

func TestCloseDuringPendingReconnect(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Accept()
	h.last().Drop()

	if h.clock.Pending() != 1 {
		t.Fatal("no reconnect pending")
	}

	h.client.Close()
	h.clock.Advance(60 * time.Second)

	if h.dialer.Count() != 1 {
		t.Fatalf("transports = %d, want 1 (no reconnect after close)", h.dialer.Count())
	}
	if h.client.State() != Disconnected {
		t.Errorf("State() = %v", h.client.State())
	}
}

func TestCloseStopsLiveTransport(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	f := h.last()
	f.Accept()

	h.client.Close()
	h.client.Close()

	if !f.Closed() {
		t.Fatal("live transport not closed")
	}
	if h.clock.Pending() != 0 {
		t.Fatal("Close scheduled a reconnect")
	}

	f.DeliverString(update7)
	if r, _ := h.store.Get(7); r.Status.Online {
		t.Error("message after Close was merged")
	}

	h.client.Start()
	if h.dialer.Count() != 1 {
		t.Error("Start after Close dialed")
	}
}

func TestTimerFiringAfterCloseIsNoop(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Drop()

	// Simulate a timer callback that already fired and was queued before
	// Close ran.
	h.client.closed = true
	h.clock.Advance(time.Second)
	if h.dialer.Count() != 1 {
		t.Fatal("reconnect ran after close")
	}
}

func TestStateHandlerSequence(t *testing.T) {
	h := newHarness(t)
	h.client.Start()
	h.last().Accept()
	h.last().Drop()
	h.clock.Advance(time.Second)
	h.last().Accept()
	h.client.Close()

	want := []State{Connecting, Connected, Disconnected, Connecting, Connected, Disconnected}
	if !reflect.DeepEqual(h.states, want) {
		t.Errorf("states = %v, want %v", h.states, want)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if matchLabels(m, labels) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, l := range m.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, WithMetrics(telemetry.NewMetrics(telemetry.WithRegistry(reg))))

	h.client.Start()
	h.last().Accept()
	if got := counterValue(t, reg, "livesync_feed_state", nil); got != 2 {
		t.Errorf("feed_state = %v, want 2", got)
	}

	h.last().DeliverString(update7)
	h.last().DeliverString(`{"type":"status_update","server_id":99,"status":{}}`)
	h.last().DeliverString(`{"type":"other"}`)
	h.last().DeliverString(`garbage`)
	h.last().Drop()

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"livesync_feed_deltas_total", map[string]string{"result": "applied"}, 1},
		{"livesync_feed_deltas_total", map[string]string{"result": "unknown"}, 1},
		{"livesync_feed_dropped_total", map[string]string{"reason": "unknown_type"}, 1},
		{"livesync_feed_dropped_total", map[string]string{"reason": "malformed"}, 1},
		{"livesync_feed_reconnects_total", nil, 1},
		{"livesync_feed_state", nil, 0},
	}
	for _, c := range checks {
		if got := counterValue(t, reg, c.name, c.labels); got != c.want {
			t.Errorf("%s%v = %v, want %v", c.name, c.labels, got, c.want)
		}
	}
}

func TestClientOnOwnLoop(t *testing.T) {
	d := transport.NewFakeDialer()
	store := status.NewStore(status.Collection{{ID: 7}})
	c, err := New(d, testEndpoint, store.Apply,
		WithClock(clock.Fake(time.Unix(0, 0))),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatal(err)
	}

	c.Start()
	f := d.Last()
	go func() {
		f.Accept()
		f.DeliverString(update7)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if r, _ := store.Get(7); r.Status != nil && r.Status.Online {
			break
		}
		select {
		case <-deadline:
			t.Fatal("update never merged")
		case <-time.After(time.Millisecond):
		}
	}
	if c.State() != Connected {
		t.Errorf("State() = %v, want connected", c.State())
	}

	c.Close()
	if !f.Closed() {
		t.Error("transport not closed")
	}
	if c.State() != Disconnected {
		t.Errorf("State() after Close = %v", c.State())
	}
}
