package observer

import (
	"context"
	"time"

	braid "github.com/nevindra/braid"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedExecutor wraps a braid.Executor with OTEL instrumentation.
// Every round trip emits a span and feeds the round-trip counter and
// duration histogram.
type ObservedExecutor struct {
	inner braid.Executor
	inst  *Instruments
}

// WrapExecutor returns an instrumented executor.
func WrapExecutor(inner braid.Executor, inst *Instruments) *ObservedExecutor {
	return &ObservedExecutor{inner: inner, inst: inst}
}

func (o *ObservedExecutor) ExecuteWithTools(ctx context.Context, call *braid.LLMCall, defs []braid.Definition) (*braid.Message, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "executor.execute_with_tools", trace.WithAttributes(
		AttrExecutor.String(o.inner.Name()),
		attribute.Int("executor.tool_count", len(defs)),
	))
	defer span.End()
	start := time.Now()

	reply, err := o.inner.ExecuteWithTools(ctx, call, defs)
	o.record(ctx, span, "with_tools", start, err)
	return reply, err
}

func (o *ObservedExecutor) Execute(ctx context.Context, query, data string) (braid.Node, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "executor.execute", trace.WithAttributes(
		AttrExecutor.String(o.inner.Name()),
	))
	defer span.End()
	start := time.Now()

	out, err := o.inner.Execute(ctx, query, data)
	o.record(ctx, span, "plain", start, err)
	return out, err
}

func (o *ObservedExecutor) CanExecute(query string) bool {
	return o.inner.CanExecute(query)
}

func (o *ObservedExecutor) Name() string {
	return o.inner.Name()
}

func (o *ObservedExecutor) SetChatMode(enabled bool) {
	o.inner.SetChatMode(enabled)
}

func (o *ObservedExecutor) record(ctx context.Context, span trace.Span, mode string, start time.Time, err error) {
	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrStatus.String(status))

	o.inst.RoundTrips.Add(ctx, 1, metric.WithAttributes(
		AttrExecutor.String(o.inner.Name()),
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
	o.inst.RoundTripDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrExecutor.String(o.inner.Name()),
		attribute.String("mode", mode),
	))
}

var _ braid.Executor = (*ObservedExecutor)(nil)
