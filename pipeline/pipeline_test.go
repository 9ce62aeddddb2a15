package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/engine/local"
	"github.com/xraph/conduit/pipeline"
	"github.com/xraph/conduit/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() policy.RetryPolicy {
	return policy.MustNew(time.Millisecond, 5*time.Millisecond, 2.0, 3)
}

func newDriver(t *testing.T, eng engine.Engine) *driver.Driver {
	t.Helper()
	return driver.New(eng, pipeline.Contracts(), driver.WithLogger(discardLogger()))
}

// auditCapture records audit entries the pipelines submit.
type auditCapture struct {
	mu      sync.Mutex
	entries []pipeline.AuditInput
}

func (a *auditCapture) handler(ctx context.Context, in pipeline.AuditInput) (pipeline.AuditOutput, error) {
	a.mu.Lock()
	a.entries = append(a.entries, in)
	a.mu.Unlock()
	return pipeline.AuditOutput{Recorded: true}, nil
}

func (a *auditCapture) statuses() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Status
	}
	return out
}

func TestETL_Completes(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	pipeline.RegisterHandlers(eng)
	d := newDriver(t, eng)

	res, err := d.Run(context.Background(), pipeline.ETL(), pipeline.ETLInput{DatasetID: "orders"}.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}

	for _, st := range []string{"process", "store", "audit"} {
		rec, ok := res.StageOutcome(st)
		if !ok {
			t.Fatalf("stage %q missing from record", st)
		}
		if rec.Outcome != driver.OutcomeSucceeded {
			t.Errorf("stage %q outcome = %q, want succeeded", st, rec.Outcome)
		}
	}
	if res.Output["recorded"] != true {
		t.Errorf("final output = %v, want audit acknowledgement", res.Output)
	}
}

func TestETL_StoreFailureAuditsFailed(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	audits := &auditCapture{}

	local.MustRegisterTyped(eng, pipeline.ContractProcess, pipeline.ProcessData)
	local.MustRegisterTyped(eng, pipeline.ContractAudit, audits.handler)
	eng.MustRegister(pipeline.ContractStore, func(ctx context.Context, in contract.Payload) (contract.Payload, error) {
		return nil, engine.Terminal(errors.New("warehouse unreachable"))
	})

	d := newDriver(t, eng)
	res, err := d.Run(context.Background(), pipeline.ETL(), pipeline.ETLInput{DatasetID: "orders"}.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != driver.StateFailed {
		t.Fatalf("Status = %v, want failed", res.Status)
	}

	var terminal *engine.TerminalError
	if !errors.As(res.Cause, &terminal) || terminal.Contract != pipeline.ContractStore {
		t.Fatalf("Cause = %v, want terminal store failure", res.Cause)
	}

	statuses := audits.statuses()
	if len(statuses) != 1 || statuses[0] != "failed" {
		t.Errorf("audit statuses = %v, want exactly one failure entry", statuses)
	}

	comp, ok := res.StageOutcome("audit-failure")
	if !ok {
		t.Fatal("failure audit missing from record")
	}
	if comp.Outcome != driver.OutcomeCompensated {
		t.Errorf("compensation outcome = %q, want compensated", comp.Outcome)
	}
}

func TestAnalytics_EmailSkippedWithoutRecipient(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	pipeline.RegisterHandlers(eng)
	d := newDriver(t, eng)

	in := pipeline.AnalyticsInput{DatasetID: "traffic", Window: "7d"}
	res, err := d.Run(context.Background(), pipeline.Analytics(), in.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}
	if _, ok := res.StageOutcome("email"); ok {
		t.Error("email stage ran without a recipient")
	}
	if _, ok := res.StageOutcome("store"); !ok {
		t.Error("store stage missing from record")
	}
}

func TestAnalytics_EmailFailureAbsorbed(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	local.MustRegisterTyped(eng, pipeline.ContractAnalyze, pipeline.AnalyzeData)
	local.MustRegisterTyped(eng, pipeline.ContractReport, pipeline.GenerateReport)
	local.MustRegisterTyped(eng, pipeline.ContractStore, pipeline.StoreResults)
	eng.MustRegister(pipeline.ContractEmail, func(ctx context.Context, in contract.Payload) (contract.Payload, error) {
		return nil, engine.Terminal(errors.New("smtp relay down"))
	})

	d := newDriver(t, eng)
	in := pipeline.AnalyticsInput{DatasetID: "traffic", Window: "7d", EmailRecipient: "ops@example.com"}
	res, err := d.Run(context.Background(), pipeline.Analytics(), in.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed despite email failure (cause: %v)", res.Status, res.Cause)
	}

	rec, ok := res.StageOutcome("email")
	if !ok {
		t.Fatal("email stage missing from record")
	}
	if rec.Outcome != driver.OutcomeAbsorbed {
		t.Errorf("email outcome = %q, want absorbed", rec.Outcome)
	}
	if _, ok := res.StageOutcome("store"); !ok {
		t.Error("store did not run after absorbed email failure")
	}
}

func TestAnalytics_EmailSentWithRecipient(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	pipeline.RegisterHandlers(eng)
	d := newDriver(t, eng)

	in := pipeline.AnalyticsInput{DatasetID: "traffic", Window: "7d", EmailRecipient: "ops@example.com"}
	res, err := d.Run(context.Background(), pipeline.Analytics(), in.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}

	rec, ok := res.StageOutcome("email")
	if !ok {
		t.Fatal("email stage missing from record")
	}
	if rec.Outcome != driver.OutcomeSucceeded {
		t.Errorf("email outcome = %q, want succeeded", rec.Outcome)
	}
}

func TestML_Completes(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	pipeline.RegisterHandlers(eng)
	d := newDriver(t, eng)

	res, err := d.Run(context.Background(), pipeline.ML(), pipeline.MLInput{DatasetID: "clickstream", Epochs: 12}.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}

	want := []string{"process", "train", "validate", "report", "store"}
	if len(res.Record) != len(want) {
		t.Fatalf("Record length = %d, want %d", len(res.Record), len(want))
	}
	for i, st := range want {
		if res.Record[i].Stage != st {
			t.Errorf("Record[%d].Stage = %q, want %q", i, res.Record[i].Stage, st)
		}
	}
	if res.Output["stored"] != true {
		t.Errorf("final output = %v, want store acknowledgement", res.Output)
	}
}

func TestML_RetriesTransientTraining(t *testing.T) {
	eng := local.New(local.WithLogger(discardLogger()))
	local.MustRegisterTyped(eng, pipeline.ContractProcess, pipeline.ProcessData)
	local.MustRegisterTyped(eng, pipeline.ContractValidate, pipeline.ValidateModel)
	local.MustRegisterTyped(eng, pipeline.ContractReport, pipeline.GenerateReport)
	local.MustRegisterTyped(eng, pipeline.ContractStore, pipeline.StoreResults)

	var calls int
	var mu sync.Mutex
	eng.MustRegister(pipeline.ContractTrain, func(ctx context.Context, in contract.Payload) (contract.Payload, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 2 {
			return nil, engine.Transient(errors.New("gpu preempted"))
		}
		return contract.Payload{"model_id": "model-1", "accuracy": 0.9}, nil
	})

	def := pipeline.ML()
	// Shrink backoff so the retry happens within test time.
	for i := range def.Stages {
		def.Stages[i].Policy = fastRetry()
	}

	d := newDriver(t, eng)
	res, err := d.Run(context.Background(), def, pipeline.MLInput{DatasetID: "clickstream", Epochs: 5}.Payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}

	rec, _ := res.StageOutcome("train")
	if rec.Attempts != 2 {
		t.Errorf("train attempts = %d, want 2", rec.Attempts)
	}
}

func TestInputValidation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"etl ok", pipeline.ETLInput{DatasetID: "x"}.Validate(), false},
		{"etl missing dataset", pipeline.ETLInput{}.Validate(), true},
		{"analytics ok", pipeline.AnalyticsInput{DatasetID: "x", Window: "7d"}.Validate(), false},
		{"analytics missing window", pipeline.AnalyticsInput{DatasetID: "x"}.Validate(), true},
		{"ml ok", pipeline.MLInput{DatasetID: "x", Epochs: 3}.Validate(), false},
		{"ml negative epochs", pipeline.MLInput{DatasetID: "x", Epochs: -1}.Validate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", tt.err, tt.wantErr)
			}
		})
	}
}

func TestDefaults_RegistersAllPipelines(t *testing.T) {
	reg := pipeline.Defaults()

	names := reg.Names()
	want := []string{pipeline.PipelineAnalytics, pipeline.PipelineETL, pipeline.PipelineML}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	for _, name := range want {
		if _, err := reg.Lookup(name); err != nil {
			t.Errorf("Lookup(%q): %v", name, err)
		}
	}
}
