package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension            = (*MetricsExtension)(nil)
	_ ext.RunStarted           = (*MetricsExtension)(nil)
	_ ext.RunCompleted         = (*MetricsExtension)(nil)
	_ ext.RunFailed            = (*MetricsExtension)(nil)
	_ ext.RunCancelled         = (*MetricsExtension)(nil)
	_ ext.StageFailed          = (*MetricsExtension)(nil)
	_ ext.CompensationExecuted = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/conduit/observability"

// MetricsExtension records system-wide lifecycle metrics. Register it
// as an extension to track run rates, terminal outcomes, stage failure
// counts, compensation outcomes, and run durations per pipeline.
type MetricsExtension struct {
	runsStarted   metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter
	runsCancelled metric.Int64Counter
	stageFailures metric.Int64Counter
	compensations metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewMetricsExtension creates the extension on the global meter
// provider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.GetMeterProvider().Meter(meterName))
}

// NewMetricsExtensionWithMeter is NewMetricsExtension with an explicit
// meter, useful in tests.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	e := &MetricsExtension{}
	e.runsStarted, _ = meter.Int64Counter("conduit.runs.started",
		metric.WithDescription("Pipeline runs started"),
	)
	e.runsCompleted, _ = meter.Int64Counter("conduit.runs.completed",
		metric.WithDescription("Pipeline runs completed successfully"),
	)
	e.runsFailed, _ = meter.Int64Counter("conduit.runs.failed",
		metric.WithDescription("Pipeline runs aborted by terminal failure"),
	)
	e.runsCancelled, _ = meter.Int64Counter("conduit.runs.cancelled",
		metric.WithDescription("Pipeline runs stopped by cancellation"),
	)
	e.stageFailures, _ = meter.Int64Counter("conduit.stages.failed",
		metric.WithDescription("Terminal stage failures, absorbed included"),
	)
	e.compensations, _ = meter.Int64Counter("conduit.compensations",
		metric.WithDescription("Compensation executions by outcome"),
	)
	e.runDuration, _ = meter.Float64Histogram("conduit.run.duration",
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
	)
	return e
}

// Name implements ext.Extension.
func (e *MetricsExtension) Name() string { return "observability" }

func pipelineAttr(run *driver.Run) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("pipeline", run.Pipeline))
}

// OnRunStarted implements ext.RunStarted.
func (e *MetricsExtension) OnRunStarted(ctx context.Context, run *driver.Run) error {
	e.runsStarted.Add(ctx, 1, pipelineAttr(run))
	return nil
}

// OnRunCompleted implements ext.RunCompleted.
func (e *MetricsExtension) OnRunCompleted(ctx context.Context, run *driver.Run, elapsed time.Duration) error {
	e.runsCompleted.Add(ctx, 1, pipelineAttr(run))
	e.runDuration.Record(ctx, elapsed.Seconds(), pipelineAttr(run))
	return nil
}

// OnRunFailed implements ext.RunFailed.
func (e *MetricsExtension) OnRunFailed(ctx context.Context, run *driver.Run, err error) error {
	e.runsFailed.Add(ctx, 1, pipelineAttr(run))
	return nil
}

// OnRunCancelled implements ext.RunCancelled.
func (e *MetricsExtension) OnRunCancelled(ctx context.Context, run *driver.Run) error {
	e.runsCancelled.Add(ctx, 1, pipelineAttr(run))
	return nil
}

// OnStageFailed implements ext.StageFailed.
func (e *MetricsExtension) OnStageFailed(ctx context.Context, run *driver.Run, stage string, err error) error {
	e.stageFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", run.Pipeline),
		attribute.String("stage", stage),
	))
	return nil
}

// OnCompensationExecuted implements ext.CompensationExecuted.
func (e *MetricsExtension) OnCompensationExecuted(ctx context.Context, run *driver.Run, compensation string, compErr error) error {
	outcome := "succeeded"
	if compErr != nil {
		outcome = "failed"
	}
	e.compensations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline", run.Pipeline),
		attribute.String("outcome", outcome),
	))
	return nil
}
