package telemetry

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.trai.ch/lyric/internal/core/domain"
)

// recorder keeps the diagnostic record of a span in memory.
type recorder struct {
	mu     sync.Mutex
	record domain.SpanRecord
}

func newRecorder(name string, start time.Time) *recorder {
	return &recorder{record: domain.SpanRecord{Name: name, Start: start}}
}

func (r *recorder) event(kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record.Events = append(r.record.Events, domain.SpanEvent{Time: time.Now(), Kind: kind, Message: message})
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record.Failed = true
	r.record.Events = append(r.record.Events, domain.SpanEvent{
		Time:    time.Now(),
		Kind:    domain.EventError,
		Message: err.Error(),
	})
}

func (r *recorder) attribute(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Attributes == nil {
		r.record.Attributes = make(map[string]string)
	}
	r.record.Attributes[key] = fmt.Sprint(value)
}

func (r *recorder) end(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.End.IsZero() {
		r.record.End = at
	}
}

func (r *recorder) snapshot() domain.SpanSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record
	rec.Attributes = maps.Clone(r.record.Attributes)
	rec.Events = slices.Clone(r.record.Events)
	return domain.SpanSet{Spans: []domain.SpanRecord{rec}}
}
