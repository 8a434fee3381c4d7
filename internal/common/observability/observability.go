// Package observability wires OpenTelemetry metrics (exported through the
// Prometheus registry) and tracing for pipeline stages.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"specgen/internal/common/logger"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	tokenCounter   otelmetric.Int64Counter
}

// New registers a Prometheus-backed meter provider and an SDK tracer provider
// as the global providers. On exporter failure it logs and returns a
// tracing-only instance.
func New(serviceName string, log logger.Logger) *Observability {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create Prometheus exporter", map[string]interface{}{"error": err})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	o.meterProvider = provider
	o.jobCounter, _ = meter.Int64Counter(
		"specgen.jobs.processed",
		otelmetric.WithDescription("Number of generation jobs processed"),
	)
	o.jobDuration, _ = meter.Float64Histogram(
		"specgen.jobs.duration",
		otelmetric.WithDescription("Generation job duration"),
		otelmetric.WithUnit("ms"),
	)
	o.tokenCounter, _ = meter.Int64Counter(
		"specgen.generation.tokens",
		otelmetric.WithDescription("Tokens consumed by generation"),
	)
	return o
}

// NewNoop records nothing. Used in tests and one-shot CLI commands.
func NewNoop() *Observability {
	return &Observability{tracer: noop.NewTracerProvider().Tracer("specgen")}
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("specgen")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordTokens(ctx context.Context, input, output int) {
	if o.tokenCounter != nil {
		o.tokenCounter.Add(ctx, int64(input), otelmetric.WithAttributes(attribute.String("direction", "input")))
		o.tokenCounter.Add(ctx, int64(output), otelmetric.WithAttributes(attribute.String("direction", "output")))
	}
}

func (o *Observability) Shutdown(ctx context.Context) {
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
