package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures Metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "livesync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for reconnect delays, in seconds.
	// Default: the backoff ladder 1, 2, 4, 8, 16, 30.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the reconnect delay histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "livesync",
		Buckets:   []float64{1, 2, 4, 8, 16, 30},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the livesync collectors. A nil *Metrics records nothing.
type Metrics struct {
	feedState      prometheus.Gauge
	feedReconnects prometheus.Counter
	feedDelay      prometheus.Histogram
	feedDeltas     *prometheus.CounterVec
	feedDropped    *prometheus.CounterVec

	consoleActive   prometheus.Gauge
	consoleCommands prometheus.Counter
	consoleLines    *prometheus.CounterVec

	transportFrames *prometheus.CounterVec
	transportBytes  *prometheus.CounterVec
	transportErrors *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. Registering twice on
// the same registry panics, so create one Metrics per registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}
	gaugeOpts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Metrics{
		feedState: factory.NewGauge(gaugeOpts(
			"feed_state", "Current feed state (0 disconnected, 1 connecting, 2 connected)")),

		feedReconnects: factory.NewCounter(counterOpts(
			"feed_reconnects_total", "Total number of feed reconnects scheduled")),

		feedDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "feed_reconnect_delay_seconds",
			Help:        "Backoff delay before each feed reconnect in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		feedDeltas: factory.NewCounterVec(counterOpts(
			"feed_deltas_total", "Total status deltas received by merge result"), []string{"result"}),

		feedDropped: factory.NewCounterVec(counterOpts(
			"feed_dropped_total", "Total feed frames dropped by reason"), []string{"reason"}),

		consoleActive: factory.NewGauge(gaugeOpts(
			"console_sessions_active", "Number of open console sessions")),

		consoleCommands: factory.NewCounter(counterOpts(
			"console_commands_total", "Total console commands submitted")),

		consoleLines: factory.NewCounterVec(counterOpts(
			"console_lines_total", "Total console transcript lines by kind"), []string{"kind"}),

		transportFrames: factory.NewCounterVec(counterOpts(
			"transport_frames_total", "Total WebSocket frames by direction"), []string{"direction"}),

		transportBytes: factory.NewCounterVec(counterOpts(
			"transport_bytes_total", "Total WebSocket payload bytes by direction"), []string{"direction"}),

		transportErrors: factory.NewCounterVec(counterOpts(
			"transport_errors_total", "Total WebSocket errors by type"), []string{"type"}),
	}
}

// SetFeedState records the feed state code.
func (m *Metrics) SetFeedState(code int) {
	if m == nil {
		return
	}
	m.feedState.Set(float64(code))
}

// RecordReconnect records a scheduled reconnect and its delay.
func (m *Metrics) RecordReconnect(delay time.Duration) {
	if m == nil {
		return
	}
	m.feedReconnects.Inc()
	m.feedDelay.Observe(delay.Seconds())
}

// RecordDelta records one merged delta. applied is false for unknown ids.
func (m *Metrics) RecordDelta(applied bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "unknown"
	}
	m.feedDeltas.WithLabelValues(result).Inc()
}

// RecordDropped records a dropped feed frame.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.feedDropped.WithLabelValues(reason).Inc()
}

// ConsoleOpened records a console session opening.
func (m *Metrics) ConsoleOpened() {
	if m == nil {
		return
	}
	m.consoleActive.Inc()
}

// ConsoleClosed records a console session closing.
func (m *Metrics) ConsoleClosed() {
	if m == nil {
		return
	}
	m.consoleActive.Dec()
}

// RecordCommand records a submitted console command.
func (m *Metrics) RecordCommand() {
	if m == nil {
		return
	}
	m.consoleCommands.Inc()
}

// RecordLine records a transcript line of the given kind.
func (m *Metrics) RecordLine(kind string) {
	if m == nil {
		return
	}
	m.consoleLines.WithLabelValues(kind).Inc()
}

// RecordFrame records one frame of n bytes. direction is "in" or "out".
func (m *Metrics) RecordFrame(direction string, n int) {
	if m == nil {
		return
	}
	m.transportFrames.WithLabelValues(direction).Inc()
	m.transportBytes.WithLabelValues(direction).Add(float64(n))
}

// RecordTransportError records a transport error by type.
func (m *Metrics) RecordTransportError(errorType string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(errorType).Inc()
}
