// Package reporting carries pipeline events (dropped rows, failed tickers,
// replaced tables) from the stages to logs, metrics and tests.
package reporting

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event names emitted by the pipeline
const (
	EventTickerFetched = "ticker_fetched"
	EventTickerEmpty   = "ticker_empty"
	EventTickerFailed  = "ticker_failed"
	EventRowDropped    = "row_dropped"
	EventDuplicateDate = "duplicate_date"
	EventTableReplaced = "table_replaced"
)

// Reporter receives pipeline events. Implementations must be safe for
// concurrent use because the extractor reports from several goroutines.
type Reporter interface {
	Record(ctx context.Context, event string, fields ...slog.Attr)
}

// SlogReporter writes every event as a structured log line
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a reporter logging through logger
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{logger: logger.With(slog.String("component", "reporter"))}
}

// Record implements Reporter
func (r *SlogReporter) Record(ctx context.Context, event string, fields ...slog.Attr) {
	level := slog.LevelInfo
	switch event {
	case EventTickerFailed:
		level = slog.LevelWarn
	case EventRowDropped, EventDuplicateDate:
		level = slog.LevelDebug
	}
	r.logger.LogAttrs(ctx, level, event, fields...)
}

// MetricReporter counts events on an OpenTelemetry counter, labelled by
// event name and ticker when present.
type MetricReporter struct {
	counter metric.Int64Counter
}

// NewMetricReporter creates a reporter incrementing counter
func NewMetricReporter(counter metric.Int64Counter) *MetricReporter {
	return &MetricReporter{counter: counter}
}

// Record implements Reporter
func (r *MetricReporter) Record(ctx context.Context, event string, fields ...slog.Attr) {
	attrs := []attribute.KeyValue{attribute.String("event", event)}
	for _, f := range fields {
		switch f.Key {
		case "ticker", "reason", "target":
			attrs = append(attrs, attribute.String(f.Key, f.Value.String()))
		}
	}
	r.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Multi fans an event out to several reporters
type Multi []Reporter

// Record implements Reporter
func (m Multi) Record(ctx context.Context, event string, fields ...slog.Attr) {
	for _, r := range m {
		r.Record(ctx, event, fields...)
	}
}

// Nop discards every event
type Nop struct{}

// Record implements Reporter
func (Nop) Record(context.Context, string, ...slog.Attr) {}

// Entry is one recorded event
type Entry struct {
	Event  string
	Fields map[string]any
}

// Recorder keeps events in memory. Used by tests and by the run report.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record implements Reporter
func (r *Recorder) Record(_ context.Context, event string, fields ...slog.Attr) {
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Key] = f.Value.Any()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Event: event, Fields: values})
}

// Entries returns a copy of all recorded events
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Filter returns the recorded events with the given name
func (r *Recorder) Filter(event string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	for _, e := range r.entries {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events with the given name were recorded
func (r *Recorder) Count(event string) int {
	return len(r.Filter(event))
}
