// Package observability provides OpenTelemetry tracing and Prometheus-style
// metrics for the survey service.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name used for the sitewise tracer.
const TracerName = "github.com/sitewise-ai/sitewise"

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "sitewise")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "sitewise",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing. Returns a no-op tracer if
// OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSurveySpan starts the root span for one survey run.
func StartSurveySpan(ctx context.Context, surveyID string, imageCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "survey.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("survey.id", surveyID),
			attribute.Int("survey.image_count", imageCount),
		),
	)
}

// StartStageSpan starts a span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, fmt.Sprintf("stage.%s", stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("survey.stage", stage)),
	)
}

// StartInferenceSpan starts a span for a multimodal model call.
func StartInferenceSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, fmt.Sprintf("inference.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("inference.provider", provider),
			attribute.String("inference.operation", operation),
		),
	)
}

// RecordStageResult marks the span according to the stage outcome.
func RecordStageResult(span trace.Span, stage string, err error, duration time.Duration) {
	span.SetAttributes(attribute.Int64("survey.stage_duration_ms", duration.Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("stage %s failed", stage))
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordVerdict annotates the root survey span with the final verdict.
func RecordVerdict(span trace.Span, status string, confidence float64) {
	span.SetAttributes(
		attribute.String("survey.status", status),
		attribute.Float64("survey.confidence", confidence),
	)
}
