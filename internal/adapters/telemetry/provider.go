// Package telemetry adapts OpenTelemetry tracing to the engine's span port.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
)

var (
	_ ports.Tracer = (*OTelTracer)(nil)
	_ ports.Span   = (*OTelSpan)(nil)
)

// LogSink receives the output written to a span.
type LogSink func(spanID string, data []byte)

// OTelTracer is a concrete implementation of ports.Tracer using OpenTelemetry.
type OTelTracer struct {
	tracer trace.Tracer
	sink   LogSink
}

// NewOTelTracer creates a tracer from the global provider with the given instrumentation name.
func NewOTelTracer(name string) *OTelTracer {
	return NewOTelTracerWithProvider(otel.GetTracerProvider(), name)
}

// NewOTelTracerWithProvider creates a tracer from an explicit provider.
func NewOTelTracerWithProvider(provider trace.TracerProvider, name string) *OTelTracer {
	return &OTelTracer{tracer: provider.Tracer(name)}
}

// WithLogSink forwards span output to sink as it is written.
func (t *OTelTracer) WithLogSink(sink LogSink) *OTelTracer {
	t.sink = sink
	return t
}

// Start creates a new span.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	attrs := make([]attribute.KeyValue, 0, len(cfg.Attributes))
	for k, v := range cfg.Attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithTimestamp(start), trace.WithAttributes(attrs...))

	s := &OTelSpan{span: span, rec: newRecorder(name, start), sink: t.sink}
	for k, v := range cfg.Attributes {
		s.rec.attribute(k, v)
	}
	return ctx, s
}

// OTelSpan is a concrete implementation of ports.Span using OpenTelemetry.
// Everything recorded on it is also kept locally and returned by Diagnostics.
type OTelSpan struct {
	span trace.Span
	rec  *recorder
	sink LogSink
}

// End completes the span.
func (s *OTelSpan) End() {
	now := time.Now()
	s.rec.end(now)
	s.span.End(trace.WithTimestamp(now))
}

// RecordError records an error for the span.
func (s *OTelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.rec.fail(err)
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	s.rec.attribute(key, value)
	s.span.SetAttributes(toAttribute(key, value))
}

// Write satisfies io.Writer by adding a log event to the span.
func (s *OTelSpan) Write(p []byte) (int, error) {
	s.rec.event(domain.EventLog, string(p))
	s.span.AddEvent(domain.EventLog, trace.WithAttributes(attribute.String("message", string(p))))
	if s.sink != nil {
		s.sink(s.span.SpanContext().SpanID().String(), p)
	}
	return len(p), nil
}

// Diagnostics returns what was recorded on the span so far.
func (s *OTelSpan) Diagnostics() domain.SpanSet {
	return s.rec.snapshot()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
