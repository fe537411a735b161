package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "task-run-history"

// Tracer wraps OpenTelemetry tracing for history queries.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer using the global TracerProvider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartSpan creates a new span and returns the updated context.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("taskhistory.%s", name),
		trace.WithAttributes(attrs...),
	)
	return ctx, span
}

// SpanFromContext returns the current span from the context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// Common attribute keys for history tracing.
var (
	AttrTask          = attribute.Key("taskhistory.task")
	AttrCorrelationID = attribute.Key("taskhistory.correlation_id")
	AttrEventCount    = attribute.Key("taskhistory.events")
	AttrRunCount      = attribute.Key("taskhistory.runs")
	AttrMaxRuns       = attribute.Key("taskhistory.max_runs")
	AttrResultCode    = attribute.Key("taskhistory.result_code")
	AttrResultSource  = attribute.Key("taskhistory.result_source")
)
