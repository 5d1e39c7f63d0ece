package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogram(t *testing.T, h prometheus.Histogram) *dto.Histogram {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram()
}

func TestMetricsFeed(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.SetFeedState(2)
	if got := metricGaugeValue(t, m.feedState); got != 2 {
		t.Fatalf("feed_state = %v, want 2", got)
	}

	m.RecordReconnect(time.Second)
	m.RecordReconnect(30 * time.Second)
	if got := metricCounterValue(t, m.feedReconnects); got != 2 {
		t.Fatalf("feed_reconnects_total = %v, want 2", got)
	}
	h := metricHistogram(t, m.feedDelay)
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 31 {
		t.Fatalf("delay histogram count=%d sum=%v, want 2 and 31", h.GetSampleCount(), h.GetSampleSum())
	}

	m.RecordDelta(true)
	m.RecordDelta(true)
	m.RecordDelta(false)
	if got := metricCounterValue(t, m.feedDeltas.WithLabelValues("applied")); got != 2 {
		t.Fatalf("deltas(applied) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.feedDeltas.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("deltas(unknown) = %v, want 1", got)
	}

	m.RecordDropped("malformed")
	if got := metricCounterValue(t, m.feedDropped.WithLabelValues("malformed")); got != 1 {
		t.Fatalf("dropped(malformed) = %v, want 1", got)
	}
}

func TestMetricsConsole(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.ConsoleOpened()
	m.ConsoleOpened()
	m.ConsoleClosed()
	if got := metricGaugeValue(t, m.consoleActive); got != 1 {
		t.Fatalf("console_sessions_active = %v, want 1", got)
	}

	m.RecordCommand()
	if got := metricCounterValue(t, m.consoleCommands); got != 1 {
		t.Fatalf("console_commands_total = %v, want 1", got)
	}

	m.RecordLine("system")
	m.RecordLine("output")
	m.RecordLine("output")
	if got := metricCounterValue(t, m.consoleLines.WithLabelValues("output")); got != 2 {
		t.Fatalf("lines(output) = %v, want 2", got)
	}
}

func TestMetricsTransport(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	m.RecordFrame("in", 10)
	m.RecordFrame("in", 5)
	m.RecordFrame("out", 3)
	m.RecordTransportError("dial")

	if got := metricCounterValue(t, m.transportFrames.WithLabelValues("in")); got != 2 {
		t.Fatalf("frames(in) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.transportBytes.WithLabelValues("in")); got != 15 {
		t.Fatalf("bytes(in) = %v, want 15", got)
	}
	if got := metricCounterValue(t, m.transportBytes.WithLabelValues("out")); got != 3 {
		t.Fatalf("bytes(out) = %v, want 3", got)
	}
	if got := metricCounterValue(t, m.transportErrors.WithLabelValues("dial")); got != 1 {
		t.Fatalf("errors(dial) = %v, want 1", got)
	}
}

func TestMetricsNamespaceAndLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(
		WithRegistry(reg),
		WithNamespace("dash"),
		WithSubsystem("sync"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{1, 5}),
	)
	m.RecordCommand()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "dash_sync_console_commands_total" {
			found = f
		}
	}
	if found == nil {
		t.Fatal("dash_sync_console_commands_total not registered")
	}
	labels := found.GetMetric()[0].GetLabel()
	if len(labels) != 1 || labels[0].GetName() != "env" || labels[0].GetValue() != "test" {
		t.Fatalf("labels = %v", labels)
	}

	if got := len(metricHistogram(t, m.feedDelay).GetBucket()); got != 2 {
		t.Fatalf("bucket count = %d, want 2", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.SetFeedState(1)
	m.RecordReconnect(time.Second)
	m.RecordDelta(true)
	m.RecordDropped("x")
	m.ConsoleOpened()
	m.ConsoleClosed()
	m.RecordCommand()
	m.RecordLine("input")
	m.RecordFrame("in", 1)
	m.RecordTransportError("read")
}

func TestMetricsDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(WithRegistry(reg))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewMetrics(WithRegistry(reg))
}
