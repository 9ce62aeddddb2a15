package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/client"
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/engine/local"
	"github.com/xraph/conduit/pipeline"
	"github.com/xraph/conduit/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T) (*client.Client, *worker.Worker, *local.Engine) {
	t.Helper()

	eng := local.New(local.WithLogger(discardLogger()))
	pipeline.RegisterHandlers(eng)
	drv := driver.New(eng, pipeline.Contracts(), driver.WithLogger(discardLogger()))
	w := worker.New(eng, drv, pipeline.Defaults(), worker.WithLogger(discardLogger()))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	return client.New(w, pipeline.Defaults(), client.WithLogger(discardLogger())), w, eng
}

func TestSubmit_ReturnsImmediatelyAndAwaits(t *testing.T) {
	c, _, _ := testClient(t)

	h, err := c.SubmitETL(context.Background(), pipeline.ETLInput{DatasetID: "orders"})
	if err != nil {
		t.Fatalf("SubmitETL: %v", err)
	}
	if h.RunID().IsNil() {
		t.Error("RunID is nil before Await")
	}
	if h.Pipeline() != pipeline.PipelineETL {
		t.Errorf("Pipeline = %q, want %q", h.Pipeline(), pipeline.PipelineETL)
	}

	res, err := h.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}
	if res.RunID != h.RunID() {
		t.Errorf("result RunID = %v, want %v", res.RunID, h.RunID())
	}

	// Awaiting again returns the same settled result.
	again, err := h.Await(context.Background())
	if err != nil || again != res {
		t.Errorf("second Await = (%v, %v), want same result", again, err)
	}
}

func TestSubmit_UnknownPipeline(t *testing.T) {
	c, _, _ := testClient(t)

	_, err := c.Submit(context.Background(), "no-such-pipeline", contract.Payload{})
	if !errors.Is(err, conduit.ErrUnknownPipeline) {
		t.Fatalf("error = %v, want ErrUnknownPipeline", err)
	}
}

func TestSubmit_InputValidationFailsFast(t *testing.T) {
	c, _, _ := testClient(t)

	if _, err := c.SubmitETL(context.Background(), pipeline.ETLInput{}); err == nil {
		t.Error("SubmitETL accepted an empty dataset")
	}
	if _, err := c.SubmitAnalytics(context.Background(), pipeline.AnalyticsInput{DatasetID: "x"}); err == nil {
		t.Error("SubmitAnalytics accepted a missing window")
	}
	if _, err := c.SubmitML(context.Background(), pipeline.MLInput{DatasetID: "x", Epochs: -2}); err == nil {
		t.Error("SubmitML accepted negative epochs")
	}
}

func TestRun_BlocksUntilSettled(t *testing.T) {
	c, _, _ := testClient(t)

	res, err := c.Run(context.Background(), pipeline.PipelineML, pipeline.MLInput{DatasetID: "clicks", Epochs: 8}.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}
}

func TestHandle_CancelSettlesRunAsCancelled(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	started := make(chan struct{}, 1)
	eng.MustRegister(pipeline.ContractProcess, func(ctx context.Context, in contract.Payload) (contract.Payload, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	pipelineHandlersExceptProcess(eng)

	drv := driver.New(eng, pipeline.Contracts(), driver.WithLogger(discardLogger()))
	w := worker.New(eng, drv, pipeline.Defaults(), worker.WithLogger(discardLogger()))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	c := client.New(w, pipeline.Defaults(), client.WithLogger(discardLogger()))
	h, err := c.SubmitETL(context.Background(), pipeline.ETLInput{DatasetID: "orders"})
	if err != nil {
		t.Fatalf("SubmitETL: %v", err)
	}

	<-started
	if !h.Cancel() {
		t.Fatal("Cancel did not find the active run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := h.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Status != driver.StateCancelled {
		t.Errorf("Status = %v, want cancelled", res.Status)
	}
}

// pipelineHandlersExceptProcess registers the simulated handlers for
// every contract but process_data, which the test scripts itself.
func pipelineHandlersExceptProcess(eng *local.Engine) {
	local.MustRegisterTyped(eng, pipeline.ContractAnalyze, pipeline.AnalyzeData)
	local.MustRegisterTyped(eng, pipeline.ContractReport, pipeline.GenerateReport)
	local.MustRegisterTyped(eng, pipeline.ContractEmail, pipeline.SendEmailReport)
	local.MustRegisterTyped(eng, pipeline.ContractStore, pipeline.StoreResults)
	local.MustRegisterTyped(eng, pipeline.ContractTrain, pipeline.TrainModel)
	local.MustRegisterTyped(eng, pipeline.ContractValidate, pipeline.ValidateModel)
	local.MustRegisterTyped(eng, pipeline.ContractAudit, pipeline.AuditLog)
}
