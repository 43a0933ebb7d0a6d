package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// noop is the single backing value for every no-op constructor: it satisfies
// Logger, Metrics, and Tracer at once, so tests and defaults that need all
// three (engine.New falls back to it field by field) share one zero-cost
// instance rather than allocating three distinct discard types.
type noop struct{}

var discard = noop{}

// NewNoopLogger constructs a Logger that discards all log messages.
func NewNoopLogger() Logger { return discard }

// NewNoopMetrics constructs a Metrics recorder that discards all metrics.
func NewNoopMetrics() Metrics { return discard }

// NewNoopTracer constructs a Tracer that creates no-op spans.
func NewNoopTracer() Tracer { return discard }

func (noop) Debug(context.Context, string, ...any) {}
func (noop) Info(context.Context, string, ...any)  {}
func (noop) Warn(context.Context, string, ...any)  {}
func (noop) Error(context.Context, string, ...any) {}

func (noop) IncCounter(string, float64, ...string)        {}
func (noop) RecordTimer(string, time.Duration, ...string) {}
func (noop) RecordGauge(string, float64, ...string)       {}

func (noop) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}
func (noop) Span(context.Context) Span { return noopSpan{} }

type noopSpan struct{}

func (noopSpan) End(...trace.SpanEndOption)             {}
func (noopSpan) AddEvent(string, ...any)                {}
func (noopSpan) SetStatus(codes.Code, string)           {}
func (noopSpan) RecordError(error, ...trace.EventOption) {}
