package driver_test

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
	"github.com/xraph/conduit/policy"
	"github.com/xraph/conduit/stage"
)

// fakeEngine scripts step outcomes per contract and records every
// submission that crosses the boundary.
type fakeEngine struct {
	mu       sync.Mutex
	calls    []string
	handlers map[string]func(in contract.Payload) (contract.Payload, error)
}

func (f *fakeEngine) SubmitStep(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Contract)
	f.mu.Unlock()

	h, ok := f.handlers[req.Contract]
	if !ok {
		return engine.StepResult{}, &engine.TerminalError{Contract: req.Contract, Err: errors.New("no handler scripted"), Attempts: 1}
	}
	out, err := h(req.Input)
	if err != nil {
		return engine.StepResult{}, err
	}
	return engine.StepResult{Output: out, Attempts: 1, Elapsed: time.Millisecond}, nil
}

func (f *fakeEngine) RegisterWorker(ctx context.Context, reg engine.WorkerRegistration) error {
	return nil
}

func (f *fakeEngine) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingEmitter captures lifecycle event names in order.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) EmitRunStarted(ctx context.Context, run *driver.Run) { r.add("started") }
func (r *recordingEmitter) EmitStageCompleted(ctx context.Context, run *driver.Run, st string, attempts int, elapsed time.Duration) {
	r.add("stage:" + st)
}
func (r *recordingEmitter) EmitStageFailed(ctx context.Context, run *driver.Run, st string, err error) {
	r.add("stage_failed:" + st)
}
func (r *recordingEmitter) EmitCompensationExecuted(ctx context.Context, run *driver.Run, comp string, compErr error) {
	r.add("compensation:" + comp)
}
func (r *recordingEmitter) EmitRunCompleted(ctx context.Context, run *driver.Run, elapsed time.Duration) {
	r.add("completed")
}
func (r *recordingEmitter) EmitRunFailed(ctx context.Context, run *driver.Run, err error) {
	r.add("failed")
}
func (r *recordingEmitter) EmitRunCancelled(ctx context.Context, run *driver.Run) { r.add("cancelled") }

func testContracts(t *testing.T) *contract.Registry {
	t.Helper()
	reg := contract.NewRegistry()
	reg.MustRegister(contract.New("extract",
		contract.Schema{"source": contract.String},
		contract.Schema{"rows": contract.Int},
	))
	reg.MustRegister(contract.New("transform",
		contract.Schema{"rows": contract.Int},
		contract.Schema{"rows": contract.Int, "clean": contract.Bool},
	))
	reg.MustRegister(contract.New("load",
		contract.Schema{"rows": contract.Int},
		contract.Schema{"stored": contract.Bool},
	))
	reg.MustRegister(contract.New("notify",
		contract.Schema{"recipient": contract.String},
		contract.Schema{"sent": contract.Bool},
	))
	reg.MustRegister(contract.New("audit",
		contract.Schema{"status": contract.String},
		contract.Schema{"recorded": contract.Bool},
	))
	reg.Freeze()
	return reg
}

func testDefinition() *stage.Definition {
	pol := policy.MustNew(time.Second, 30*time.Second, 2.0, 3)

	return &stage.Definition{
		Name: "etl-test",
		Stages: []stage.Stage{
			stage.Invoke("extract", "extract", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
				return contract.Payload{"source": s.Input()["source"]}, nil
			}),
			stage.Invoke("transform", "transform", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
				return contract.Payload{"rows": s.MustOutput("extract")["rows"]}, nil
			}),
			stage.Invoke("load", "load", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
				return contract.Payload{"rows": s.MustOutput("transform")["rows"]}, nil
			}),
		},
		OnFailure: []stage.Compensation{
			stage.Compensate("audit-failure", "audit", time.Minute, func(s *stage.Scope, cause error) (contract.Payload, error) {
				return contract.Payload{"status": "failed"}, nil
			}),
		},
	}
}

func happyHandlers() map[string]func(contract.Payload) (contract.Payload, error) {
	return map[string]func(contract.Payload) (contract.Payload, error){
		"extract": func(in contract.Payload) (contract.Payload, error) {
			return contract.Payload{"rows": 100}, nil
		},
		"transform": func(in contract.Payload) (contract.Payload, error) {
			return contract.Payload{"rows": in["rows"], "clean": true}, nil
		},
		"load": func(in contract.Payload) (contract.Payload, error) {
			return contract.Payload{"stored": true}, nil
		},
		"audit": func(in contract.Payload) (contract.Payload, error) {
			return contract.Payload{"recorded": true}, nil
		},
	}
}

func newDriver(t *testing.T, eng engine.Engine, opts ...driver.Option) *driver.Driver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]driver.Option{driver.WithLogger(logger)}, opts...)
	return driver.New(eng, testContracts(t), opts...)
}

func TestRun_Completes(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	res, err := d.Run(context.Background(), testDefinition(), contract.Payload{"source": "s3://bucket"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed (cause: %v)", res.Status, res.Cause)
	}
	if res.Output["stored"] != true {
		t.Errorf("Output = %v, want final load output", res.Output)
	}
	if len(res.Record) != 3 {
		t.Fatalf("Record length = %d, want 3", len(res.Record))
	}
	for i, want := range []string{"extract", "transform", "load"} {
		if res.Record[i].Stage != want {
			t.Errorf("Record[%d].Stage = %q, want %q", i, res.Record[i].Stage, want)
		}
		if res.Record[i].Outcome != driver.OutcomeSucceeded {
			t.Errorf("Record[%d].Outcome = %q, want succeeded", i, res.Record[i].Outcome)
		}
	}
}

func TestRun_CriticalFailureCompensates(t *testing.T) {
	handlers := happyHandlers()
	handlers["load"] = func(in contract.Payload) (contract.Payload, error) {
		return nil, &engine.TerminalError{Contract: "load", Err: errors.New("warehouse down"), Attempts: 3, Exhausted: true}
	}
	eng := &fakeEngine{handlers: handlers}
	emitter := &recordingEmitter{}
	d := newDriver(t, eng, driver.WithEmitter(emitter))

	res, err := d.Run(context.Background(), testDefinition(), contract.Payload{"source": "s3://bucket"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != driver.StateFailed {
		t.Fatalf("Status = %v, want failed", res.Status)
	}

	var terminal *engine.TerminalError
	if !errors.As(res.Cause, &terminal) {
		t.Fatalf("Cause = %v, want TerminalError", res.Cause)
	}
	if !terminal.Exhausted || terminal.Attempts != 3 {
		t.Errorf("Cause = %+v, want exhausted after 3 attempts", terminal)
	}

	comp, ok := res.StageOutcome("audit-failure")
	if !ok {
		t.Fatal("compensation missing from record")
	}
	if comp.Outcome != driver.OutcomeCompensated {
		t.Errorf("compensation outcome = %q, want compensated", comp.Outcome)
	}

	last := emitter.events[len(emitter.events)-1]
	if last != "failed" {
		t.Errorf("last event = %q, want failed", last)
	}
}

func TestRun_CompensationFailureNeverMasksCause(t *testing.T) {
	handlers := happyHandlers()
	handlers["load"] = func(in contract.Payload) (contract.Payload, error) {
		return nil, &engine.TerminalError{Contract: "load", Err: errors.New("warehouse down"), Attempts: 3, Exhausted: true}
	}
	handlers["audit"] = func(in contract.Payload) (contract.Payload, error) {
		return nil, &engine.TerminalError{Contract: "audit", Err: errors.New("audit store down"), Attempts: 1}
	}
	eng := &fakeEngine{handlers: handlers}
	d := newDriver(t, eng)

	res, err := d.Run(context.Background(), testDefinition(), contract.Payload{"source": "s3://bucket"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var terminal *engine.TerminalError
	if !errors.As(res.Cause, &terminal) || terminal.Contract != "load" {
		t.Fatalf("Cause = %v, want the original load failure", res.Cause)
	}

	comp, ok := res.StageOutcome("audit-failure")
	if !ok {
		t.Fatal("compensation missing from record")
	}
	if comp.Outcome != driver.OutcomeCompensationFailed {
		t.Errorf("compensation outcome = %q, want compensation_failed", comp.Outcome)
	}
}

func TestRun_BestEffortFailureAbsorbed(t *testing.T) {
	handlers := happyHandlers()
	handlers["notify"] = func(in contract.Payload) (contract.Payload, error) {
		return nil, &engine.TerminalError{Contract: "notify", Err: errors.New("smtp down"), Attempts: 3, Exhausted: true}
	}
	eng := &fakeEngine{handlers: handlers}
	d := newDriver(t, eng)

	pol := policy.MustNew(time.Second, 30*time.Second, 2.0, 3)
	def := testDefinition()
	def.Stages = append(def.Stages[:2:2],
		stage.Invoke("notify", "notify", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
			return contract.Payload{"recipient": "ops@example.com"}, nil
		}).BestEffort(),
		def.Stages[2],
	)

	res, err := d.Run(context.Background(), def, contract.Payload{"source": "s3://bucket"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed despite best-effort failure", res.Status)
	}

	rec, ok := res.StageOutcome("notify")
	if !ok {
		t.Fatal("absorbed stage missing from record")
	}
	if rec.Outcome != driver.OutcomeAbsorbed {
		t.Errorf("notify outcome = %q, want absorbed", rec.Outcome)
	}
	if _, ok := res.StageOutcome("load"); !ok {
		t.Error("load did not run after absorbed failure")
	}
}

func TestRun_ConditionSkipsWithoutRecord(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	pol := policy.MustNew(time.Second, 30*time.Second, 2.0, 3)
	def := testDefinition()
	def.Stages = append(def.Stages,
		stage.Invoke("notify", "notify", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
			return contract.Payload{"recipient": "ops@example.com"}, nil
		}).When(func(s *stage.Scope) bool {
			return s.Input()["email"] == true
		}),
	)

	res, err := d.Run(context.Background(), def, contract.Payload{"source": "s3://bucket", "email": false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed", res.Status)
	}
	if _, ok := res.StageOutcome("notify"); ok {
		t.Error("skipped stage present in record")
	}
	for _, c := range eng.submitted() {
		if c == "notify" {
			t.Error("skipped stage was submitted to the engine")
		}
	}
}

func TestRun_ReplaySkipsCompletedStages(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	res, err := d.Run(context.Background(), testDefinition(), contract.Payload{"source": "s3://bucket"},
		driver.WithCompleted(map[string]contract.Payload{
			"extract":   {"rows": 100},
			"transform": {"rows": 100, "clean": true},
		}),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Status = %v, want completed", res.Status)
	}

	calls := eng.submitted()
	if len(calls) != 1 || calls[0] != "load" {
		t.Errorf("submitted = %v, want only load", calls)
	}
}

func TestRun_CancellationSkipsCompensations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	handlers := happyHandlers()
	handlers["transform"] = func(in contract.Payload) (contract.Payload, error) {
		cancel() // cancellation lands while the run is mid-walk
		return contract.Payload{"rows": in["rows"], "clean": true}, nil
	}
	eng := &fakeEngine{handlers: handlers}
	emitter := &recordingEmitter{}
	d := newDriver(t, eng, driver.WithEmitter(emitter))

	res, err := d.Run(ctx, testDefinition(), contract.Payload{"source": "s3://bucket"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != driver.StateCancelled {
		t.Fatalf("Status = %v, want cancelled", res.Status)
	}
	if !errors.Is(res.Cause, context.Canceled) {
		t.Errorf("Cause = %v, want context.Canceled", res.Cause)
	}

	for _, c := range eng.submitted() {
		if c == "load" || c == "audit" {
			t.Errorf("submitted %q after cancellation", c)
		}
	}
	for _, e := range emitter.events {
		if e == "failed" || e == "completed" {
			t.Errorf("emitted %q, want only cancelled terminal event", e)
		}
	}
}

func TestRun_UnknownContractIsDefinitionError(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	pol := policy.MustNew(time.Second, 30*time.Second, 2.0, 3)
	def := &stage.Definition{
		Name: "broken",
		Stages: []stage.Stage{
			stage.Invoke("nope", "does-not-exist", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
				return contract.Payload{}, nil
			}),
		},
	}

	res, err := d.Run(context.Background(), def, contract.Payload{})
	if !engine.IsDefinition(err) {
		t.Fatalf("error = %v, want DefinitionError", err)
	}
	if res.Status != driver.StateFailed {
		t.Errorf("Status = %v, want failed", res.Status)
	}
	if len(eng.submitted()) != 0 {
		t.Error("submitted a step despite unknown contract")
	}
}

func TestRun_SchemaViolationIsDefinitionError(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	pol := policy.MustNew(time.Second, 30*time.Second, 2.0, 3)
	def := &stage.Definition{
		Name: "broken",
		Stages: []stage.Stage{
			stage.Invoke("extract", "extract", time.Minute, pol, func(s *stage.Scope) (contract.Payload, error) {
				return contract.Payload{"source": 42}, nil // int where string required
			}),
		},
	}

	_, err := d.Run(context.Background(), def, contract.Payload{})
	if !engine.IsDefinition(err) {
		t.Fatalf("error = %v, want DefinitionError", err)
	}
	var schemaErr *contract.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want wrapped SchemaError", err)
	}
	if schemaErr.Field != "source" {
		t.Errorf("Field = %q, want source", schemaErr.Field)
	}
	if len(eng.submitted()) != 0 {
		t.Error("schema-violating input crossed the boundary")
	}
}

func TestRun_EmptyDefinitionRejected(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	d := newDriver(t, eng)

	_, err := d.Run(context.Background(), &stage.Definition{Name: "empty"}, contract.Payload{})
	if !engine.IsDefinition(err) {
		t.Fatalf("error = %v, want DefinitionError", err)
	}
}

func TestRun_LifecycleEventOrder(t *testing.T) {
	eng := &fakeEngine{handlers: happyHandlers()}
	emitter := &recordingEmitter{}
	d := newDriver(t, eng, driver.WithEmitter(emitter))

	if _, err := d.Run(context.Background(), testDefinition(), contract.Payload{"source": "s3://bucket"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"started", "stage:extract", "stage:transform", "stage:load", "completed"}
	if len(emitter.events) != len(want) {
		t.Fatalf("events = %v, want %v", emitter.events, want)
	}
	for i := range want {
		if emitter.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, emitter.events[i], want[i])
		}
	}
}
