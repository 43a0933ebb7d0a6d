package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// instrumentationName is the OTEL meter/tracer name every clue-backed
// instrument in this process is registered under.
const instrumentationName = "github.com/latticeplan/htn"

// clueBackend is the single OTEL-backed value underlying every Clue
// constructor below. Logging goes straight through goa.design/clue/log and
// needs no state; metrics and tracing need a meter and tracer handle, which
// this backend owns once and shares across the Logger/Metrics/Tracer views
// rather than each re-resolving its own from the global providers.
// Counters and histograms are resolved lazily and cached by name, since
// otel's meter lookups allocate and the engine calls the same handful of
// metric names on every action it executes.
type clueBackend struct {
	meter      metric.Meter
	tracer     trace.Tracer
	counters   sync.Map // string -> metric.Float64Counter
	histograms sync.Map // string -> metric.Float64Histogram
}

var defaultClueBackend = sync.OnceValue(func() *clueBackend {
	return &clueBackend{
		meter:  otel.Meter(instrumentationName),
		tracer: otel.Tracer(instrumentationName),
	}
})

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log.
// The logger reads formatting and debug settings from the context (set via
// log.Context and log.WithFormat/log.WithDebug).
func NewClueLogger() Logger { return clueLogger{} }

// NewClueMetrics constructs a Metrics recorder backed by the process's
// shared OTEL meter; configure it via clue.ConfigureOpenTelemetry before
// invoking engine methods.
func NewClueMetrics() Metrics { return defaultClueBackend() }

// NewClueTracer constructs a Tracer backed by the process's shared OTEL
// tracer.
func NewClueTracer() Tracer { return defaultClueBackend() }

// clueLogger delegates to goa.design/clue/log. It carries no state of its
// own, unlike the metrics/tracing views, since clue's logger is entirely
// driven off the request context.
type clueLogger struct{}

// Debug emits a debug-level log message with structured key-value pairs.
func (clueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (clueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (clueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := []log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}
	log.Warn(ctx, append(fielders, kvSliceToClue(keyvals)...)...)
}

// Error emits an error-level log message with structured key-value pairs.
func (clueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSliceToClue(keyvals)...)...)
}

func (b *clueBackend) counter(name string) (metric.Float64Counter, error) {
	if c, ok := b.counters.Load(name); ok {
		return c.(metric.Float64Counter), nil
	}
	c, err := b.meter.Float64Counter(name)
	if err != nil {
		return metric.Float64Counter{}, err
	}
	actual, _ := b.counters.LoadOrStore(name, c)
	return actual.(metric.Float64Counter), nil
}

func (b *clueBackend) histogram(name string) (metric.Float64Histogram, error) {
	if h, ok := b.histograms.Load(name); ok {
		return h.(metric.Float64Histogram), nil
	}
	h, err := b.meter.Float64Histogram(name)
	if err != nil {
		return metric.Float64Histogram{}, err
	}
	actual, _ := b.histograms.LoadOrStore(name, h)
	return actual.(metric.Float64Histogram), nil
}

// IncCounter increments a counter metric by the given value.
func (b *clueBackend) IncCounter(name string, value float64, tags ...string) {
	counter, err := b.counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records a duration histogram for the named metric.
func (b *clueBackend) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := b.histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordGauge records a gauge metric value. OTEL has no synchronous gauge
// instrument, so this falls back to a suffixed histogram.
func (b *clueBackend) RecordGauge(name string, value float64, tags ...string) {
	histogram, err := b.histogram(name + "_gauge")
	if err != nil {
		return
	}
	histogram.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// Start creates a new span with the given name and options.
func (b *clueBackend) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := b.tracer.Start(ctx, name, opts...)
	return newCtx, clueSpan{span: span}
}

// Span retrieves the current span from the context.
func (b *clueBackend) Span(ctx context.Context) Span {
	return clueSpan{span: trace.SpanFromContext(ctx)}
}

type clueSpan struct {
	span trace.Span
}

func (s clueSpan) End(opts ...trace.SpanEndOption) {
	s.span.End(opts...)
}

func (s clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvSliceToAttrs(attrs)...))
}

func (s clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s clueSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

func kvSliceToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: k, V: v})
	}
	return fielders
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}

func kvSliceToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		keyStr, _ := keyvals[i].(string)
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(keyStr, val))
		case int:
			attrs = append(attrs, attribute.Int(keyStr, val))
		case int64:
			attrs = append(attrs, attribute.Int64(keyStr, val))
		case float64:
			attrs = append(attrs, attribute.Float64(keyStr, val))
		case bool:
			attrs = append(attrs, attribute.Bool(keyStr, val))
		default:
			attrs = append(attrs, attribute.String(keyStr, ""))
		}
	}
	return attrs
}
