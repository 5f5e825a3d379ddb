package telemetry

import (
	"context"
	"time"

	"go.trai.ch/lyric/internal/core/domain"
	"go.trai.ch/lyric/internal/core/ports"
)

// NoOpTracer creates spans that export nothing. Their diagnostics are still kept.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// Start creates a new local-only span.
func (t *NoOpTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &NoOpSpan{rec: newRecorder(name, time.Now())}
	for k, v := range cfg.Attributes {
		s.rec.attribute(k, v)
	}
	return ctx, s
}

// NoOpSpan is a ports.Span that only records diagnostics.
type NoOpSpan struct {
	rec *recorder
}

// End marks the end time.
func (s *NoOpSpan) End() { s.rec.end(time.Now()) }

// RecordError marks the span failed.
func (s *NoOpSpan) RecordError(err error) {
	if err != nil {
		s.rec.fail(err)
	}
}

// SetAttribute records an attribute.
func (s *NoOpSpan) SetAttribute(key string, value any) { s.rec.attribute(key, value) }

// Write records p as a log event.
func (s *NoOpSpan) Write(p []byte) (int, error) {
	s.rec.event(domain.EventLog, string(p))
	return len(p), nil
}

// Diagnostics returns what was recorded on the span.
func (s *NoOpSpan) Diagnostics() domain.SpanSet { return s.rec.snapshot() }
