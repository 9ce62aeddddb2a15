package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/conduit/engine"
)

const meterName = "github.com/xraph/conduit"

// Metrics returns middleware that records step submission metrics via
// OpenTelemetry: a counter of submissions by contract and outcome, a
// counter of attempts the engine made, and a histogram of suspension
// duration.
func Metrics() Middleware {
	return MetricsWithMeter(otel.GetMeterProvider().Meter(meterName))
}

// MetricsWithMeter is Metrics with an explicit meter, useful in tests.
func MetricsWithMeter(meter metric.Meter) Middleware {
	submissions, _ := meter.Int64Counter("conduit.step.submissions",
		metric.WithDescription("Step submissions by contract and outcome"),
	)
	attempts, _ := meter.Int64Counter("conduit.step.attempts",
		metric.WithDescription("Step attempts made behind the engine boundary"),
	)
	duration, _ := meter.Float64Histogram("conduit.step.duration",
		metric.WithDescription("Step suspension duration in seconds"),
		metric.WithUnit("s"),
	)

	return func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (engine.StepResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		elapsed := time.Since(start)

		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
		}
		attrs := metric.WithAttributes(
			attribute.String("contract", req.Contract),
			attribute.String("outcome", outcome),
		)

		submissions.Add(ctx, 1, attrs)
		if res.Attempts > 0 {
			attempts.Add(ctx, int64(res.Attempts), attrs)
		}
		duration.Record(ctx, elapsed.Seconds(), attrs)

		return res, err
	}
}
