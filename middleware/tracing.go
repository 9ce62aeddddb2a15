package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/conduit/engine"
)

const tracerName = "github.com/xraph/conduit"

// Tracing returns middleware that opens an OpenTelemetry span around
// each step submission. The span covers the full suspension, retries
// included, since those happen behind the engine boundary.
func Tracing() Middleware {
	return TracingWithProvider(otel.GetTracerProvider())
}

// TracingWithProvider is Tracing with an explicit tracer provider,
// useful in tests.
func TracingWithProvider(tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)

	return func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (engine.StepResult, error) {
		ctx, span := tracer.Start(ctx, "step "+req.Contract,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("conduit.contract", req.Contract),
				attribute.Int("conduit.max_attempts", req.Policy.MaxAttempts),
			),
		)
		defer span.End()

		res, err := next(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}

		span.SetAttributes(attribute.Int("conduit.attempts", res.Attempts))
		span.SetStatus(codes.Ok, "")
		return res, nil
	}
}
