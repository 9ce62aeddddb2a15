package middleware_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/middleware"
)

func TestMetrics_RecordsSubmissions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("test")

	submit := middleware.Wrap(func(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
		if req.Contract == "store" {
			return engine.StepResult{}, &engine.TerminalError{Contract: "store", Err: errors.New("down"), Attempts: 3, Exhausted: true}
		}
		return engine.StepResult{Attempts: 2}, nil
	}, middleware.MetricsWithMeter(meter))

	ctx := context.Background()
	req := testRequest()
	if _, err := submit(ctx, req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	req.Contract = "store"
	if _, err := submit(ctx, req); err == nil {
		t.Fatal("expected terminal error")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var total int64
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "conduit.step.submissions" {
				continue
			}
			found = true
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("submissions data type = %T, want Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if !found {
		t.Fatal("conduit.step.submissions metric not recorded")
	}
	if total != 2 {
		t.Errorf("submissions total = %d, want 2", total)
	}
}
