package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for livesync.
const defaultTracerName = "livesync"

// Span names.
const (
	SpanFeedConnect    = "livesync.feed.connect"
	SpanConsoleSession = "livesync.console.session"
)

// Attribute keys.
const (
	AttrEndpoint = attribute.Key("livesync.endpoint")
	AttrAttempt  = attribute.Key("livesync.attempt")
	AttrServerID = attribute.Key("livesync.server_id")
)

type tracerConfig struct {
	name     string
	provider trace.TracerProvider
}

// TracerOption configures a Tracer.
type TracerOption func(*tracerConfig)

// WithTracerName sets the tracer name (default: "livesync").
func WithTracerName(name string) TracerOption {
	return func(c *tracerConfig) {
		c.name = name
	}
}

// WithTracerProvider sets the provider. Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *tracerConfig) {
		c.provider = tp
	}
}

// Tracer starts livesync spans. A nil *Tracer starts inert spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer. Configure the global provider in main()
// before calling it, or pass WithTracerProvider.
func NewTracer(opts ...TracerOption) *Tracer {
	config := tracerConfig{name: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.provider == nil {
		config.provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: config.provider.Tracer(config.name)}
}

// Start opens a client span.
func (t *Tracer) Start(name string, attrs ...attribute.KeyValue) Span {
	if t == nil || t.tracer == nil {
		return Span{}
	}
	_, span := t.tracer.Start(context.Background(), name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return Span{span: span}
}

// Span wraps a trace.Span. The zero Span is inert.
type Span struct {
	span trace.Span
}

// Active reports whether the span records to a tracer.
func (s Span) Active() bool {
	return s.span != nil
}

// Event adds a named event.
func (s Span) Event(name string, attrs ...attribute.KeyValue) {
	if s.span == nil {
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span.
func (s Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(attrs...)
}

// End finishes the span with an Ok status, or an Error status when err
// is non-nil.
func (s Span) End(err error) {
	if s.span == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
