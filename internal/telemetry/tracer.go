package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/takopi-bot/takopi"

// Init configures the global TracerProvider. With otlpEndpoint set, spans
// are batched to that collector over OTLP/HTTP; otherwise they print to
// stdout, useful for local runs and tests. Returns a shutdown func that
// must be called on exit.
func Init(ctx context.Context, otlpEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName("takopi")))
	if err != nil {
		return nil, err
	}

	var exp sdktrace.SpanExporter
	if otlpEndpoint != "" {
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(otlpEndpoint))
	} else {
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the package-scoped tracer. Call after Init; before Init
// it resolves to OTEL's no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// RunSpan starts one span per runner invocation; the caller ends it when
// the run's terminal Completed event is observed.
func RunSpan(ctx context.Context, engineID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "run", trace.WithAttributes(attribute.String("takopi.engine", engineID)))
}

// ActionSpan starts a child span for one Action's lifetime.
func ActionSpan(ctx context.Context, actionKind, actionTitle string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "action", trace.WithAttributes(
		attribute.String("takopi.action_kind", actionKind),
		attribute.String("takopi.action_title", actionTitle),
	))
}
