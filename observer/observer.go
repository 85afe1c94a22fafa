// Package observer provides OTEL-based observability for braid flows.
//
// It exposes an instrumented Executor wrapper and a braid.Tracer backed by
// OpenTelemetry. Users export to any OTEL-compatible backend by setting
// standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/braid/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter

	// Counters
	RoundTrips Int64Counter
	Dispatches Int64Counter
	ParseCalls Int64Counter

	// Histograms
	RoundTripDuration Float64Histogram
	FlowDuration      Float64Histogram
}

// Aliases keep the Instruments fields readable without importing the
// metric package at every use site.
type (
	Int64Counter     = metric.Int64Counter
	Float64Histogram = metric.Float64Histogram
)

// Init sets up OTEL trace and metric providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("braid")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)

	roundTrips, err := meter.Int64Counter("flow.round_trips",
		metric.WithDescription("Model round trip count"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("flow.dispatches",
		metric.WithDescription("Function dispatch count"),
		metric.WithUnit("{dispatch}"))
	if err != nil {
		return nil, err
	}

	parseCalls, err := meter.Int64Counter("flow.parse_calls",
		metric.WithDescription("Flow seeding count"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	roundTripDuration, err := meter.Float64Histogram("flow.round_trip.duration",
		metric.WithDescription("Model round trip duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	flowDuration, err := meter.Float64Histogram("flow.duration",
		metric.WithDescription("Whole-flow drain duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:            tracer,
		Meter:             meter,
		RoundTrips:        roundTrips,
		Dispatches:        dispatches,
		ParseCalls:        parseCalls,
		RoundTripDuration: roundTripDuration,
		FlowDuration:      flowDuration,
	}, nil
}
