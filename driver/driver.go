package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/middleware"
	"github.com/xraph/conduit/policy"
	"github.com/xraph/conduit/stage"
)

// Driver executes pipeline definitions against an engine.
type Driver struct {
	submit    engine.SubmitFunc
	contracts *contract.Registry
	emitter   Emitter
	logger    *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithEmitter sets the lifecycle event emitter, typically the
// extension registry.
func WithEmitter(e Emitter) Option {
	return func(d *Driver) { d.emitter = e }
}

// WithMiddleware wraps the step submission path. Middleware run in the
// given order, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Driver) { d.submit = middleware.Wrap(d.submit, mws...) }
}

// New creates a Driver submitting to eng, resolving step contracts
// through contracts.
func New(eng engine.Engine, contracts *contract.Registry, opts ...Option) *Driver {
	d := &Driver{
		submit:    eng.SubmitStep,
		contracts: contracts,
		emitter:   NopEmitter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	runID     id.RunID
	completed map[string]contract.Payload
}

// WithRunID pins the run's identifier. Used when the engine assigns
// run identity; without it the driver generates one.
func WithRunID(runID id.RunID) RunOption {
	return func(c *runConfig) { c.runID = runID }
}

// WithCompleted seeds the scope with outputs of stages that already
// completed in a previous execution of this run. Seeded stages are
// skipped without re-deriving inputs or resubmitting, which keeps
// replay after a crash idempotent.
func WithCompleted(outputs map[string]contract.Payload) RunOption {
	return func(c *runConfig) { c.completed = outputs }
}

// Run walks def's stage graph with the given input and returns the
// terminal result. The returned error is non-nil only for definition
// errors (unknown contract, schema violation, builder failure), which
// are fatal and never retried; step failures and cancellation are
// reported through Result.Status and Result.Cause.
func (d *Driver) Run(ctx context.Context, def *stage.Definition, input contract.Payload, opts ...RunOption) (*Result, error) {
	cfg := runConfig{runID: id.NewRunID()}
	for _, opt := range opts {
		opt(&cfg)
	}

	run := &Run{
		ID:        cfg.runID,
		Pipeline:  def.Name,
		State:     StatePending,
		Input:     input,
		StartedAt: time.Now(),
	}
	result := &Result{RunID: run.ID, Pipeline: def.Name}
	started := run.StartedAt

	if err := def.Validate(); err != nil {
		return d.failDefinition(ctx, run, result, started, "", err)
	}

	scope := stage.NewScope(input)
	for name, out := range cfg.completed {
		scope.SetOutput(name, out)
	}

	run.State = StateRunning
	d.emitter.EmitRunStarted(ctx, run)
	d.logger.Info("run started",
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", def.Name),
	)

	var lastOutput contract.Payload

	for _, st := range def.Stages {
		if ctx.Err() != nil {
			return d.cancel(ctx, run, result, started), nil
		}

		if st.Condition != nil && !st.Condition(scope) {
			d.logger.Debug("stage skipped",
				slog.String("run_id", run.ID.String()),
				slog.String("stage", st.Name),
			)
			continue
		}

		// Stage already completed in a prior execution: reuse its
		// output without resubmitting.
		if out, ok := scope.Output(st.Name); ok {
			lastOutput = out
			continue
		}

		ct, err := d.contracts.Lookup(st.Contract)
		if err != nil {
			return d.failDefinition(ctx, run, result, started, st.Name, err)
		}

		in, err := st.Build(scope)
		if err != nil {
			return d.failDefinition(ctx, run, result, started, st.Name, err)
		}
		if err := ct.Input.Validate(ct.Name, in); err != nil {
			return d.failDefinition(ctx, run, result, started, st.Name, err)
		}

		res, err := d.submit(ctx, engine.StepRequest{
			Contract: st.Contract,
			Input:    in,
			Policy:   st.Policy,
			Timeout:  st.Timeout,
		})
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return d.cancel(ctx, run, result, started), nil
			}
			if engine.IsDefinition(err) {
				return d.failDefinition(ctx, run, result, started, st.Name, err)
			}

			terminal := asTerminal(st.Contract, err)
			d.emitter.EmitStageFailed(ctx, run, st.Name, terminal)

			if st.Optional {
				result.Record = append(result.Record, StageRecord{
					Stage:    st.Name,
					Contract: st.Contract,
					Attempts: terminal.Attempts,
					Outcome:  OutcomeAbsorbed,
					Duration: res.Elapsed,
					Error:    terminal.Error(),
				})
				d.logger.Warn("best-effort stage failed, continuing",
					slog.String("run_id", run.ID.String()),
					slog.String("stage", st.Name),
					slog.String("error", terminal.Error()),
				)
				continue
			}

			result.Record = append(result.Record, StageRecord{
				Stage:    st.Name,
				Contract: st.Contract,
				Attempts: terminal.Attempts,
				Outcome:  OutcomeFailed,
				Duration: res.Elapsed,
				Error:    terminal.Error(),
			})
			return d.fail(ctx, def, scope, run, result, started, terminal), nil
		}

		if err := ct.Output.Validate(ct.Name, res.Output); err != nil {
			return d.failDefinition(ctx, run, result, started, st.Name, err)
		}

		scope.SetOutput(st.Name, res.Output)
		lastOutput = res.Output
		result.Record = append(result.Record, StageRecord{
			Stage:    st.Name,
			Contract: st.Contract,
			Attempts: res.Attempts,
			Outcome:  OutcomeSucceeded,
			Duration: res.Elapsed,
		})
		d.emitter.EmitStageCompleted(ctx, run, st.Name, res.Attempts, res.Elapsed)
	}

	run.State = StateCompleted
	run.CompletedAt = time.Now()
	result.Status = StateCompleted
	result.Output = lastOutput
	result.Elapsed = time.Since(started)
	d.emitter.EmitRunCompleted(ctx, run, result.Elapsed)
	d.logger.Info("run completed",
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", def.Name),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// fail runs compensations for a critical terminal failure and settles
// the run as failed. The compensation outcomes are recorded but the
// original cause is always what surfaces.
func (d *Driver) fail(ctx context.Context, def *stage.Definition, scope *stage.Scope, run *Run, result *Result, started time.Time, cause error) *Result {
	run.State = StateCompensating
	d.compensate(ctx, def, scope, run, result, cause)

	run.State = StateFailed
	run.CompletedAt = time.Now()
	run.Error = cause.Error()
	result.Status = StateFailed
	result.Cause = cause
	result.Elapsed = time.Since(started)
	d.emitter.EmitRunFailed(ctx, run, cause)
	d.logger.Error("run failed",
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", run.Pipeline),
		slog.String("error", cause.Error()),
	)
	return result
}

// compensate executes the definition's OnFailure hooks in order, each
// with a single attempt. A compensation failure is recorded and logged
// and the remaining compensations still run.
func (d *Driver) compensate(ctx context.Context, def *stage.Definition, scope *stage.Scope, run *Run, result *Result, cause error) {
	for _, comp := range def.OnFailure {
		if ctx.Err() != nil {
			return
		}

		rec := StageRecord{Stage: comp.Name, Contract: comp.Contract}

		compErr := func() error {
			ct, err := d.contracts.Lookup(comp.Contract)
			if err != nil {
				return err
			}
			in, err := comp.Build(scope, cause)
			if err != nil {
				return err
			}
			if err := ct.Input.Validate(ct.Name, in); err != nil {
				return err
			}
			res, err := d.submit(ctx, engine.StepRequest{
				Contract: comp.Contract,
				Input:    in,
				Policy:   policy.Single(),
				Timeout:  comp.Timeout,
			})
			rec.Attempts = res.Attempts
			rec.Duration = res.Elapsed
			return err
		}()

		if compErr != nil {
			rec.Outcome = OutcomeCompensationFailed
			rec.Error = compErr.Error()
			d.logger.Error("compensation failed",
				slog.String("run_id", run.ID.String()),
				slog.String("compensation", comp.Name),
				slog.String("error", compErr.Error()),
			)
		} else {
			rec.Outcome = OutcomeCompensated
		}
		result.Record = append(result.Record, rec)
		d.emitter.EmitCompensationExecuted(ctx, run, comp.Name, compErr)
	}
}

// cancel settles a run stopped by external cancellation. Remaining
// stages are skipped and compensations do not execute.
func (d *Driver) cancel(ctx context.Context, run *Run, result *Result, started time.Time) *Result {
	run.State = StateCancelled
	run.CompletedAt = time.Now()
	result.Status = StateCancelled
	result.Cause = context.Cause(ctx)
	result.Elapsed = time.Since(started)
	d.emitter.EmitRunCancelled(ctx, run)
	d.logger.Info("run cancelled",
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", run.Pipeline),
	)
	return result
}

// failDefinition settles a run killed by a programming error in its
// definition. No retries, no compensations: the same walk would fail
// the same way every time.
func (d *Driver) failDefinition(ctx context.Context, run *Run, result *Result, started time.Time, stageName string, cause error) (*Result, error) {
	var defErr *engine.DefinitionError
	if !errors.As(cause, &defErr) {
		defErr = &engine.DefinitionError{Pipeline: run.Pipeline, Stage: stageName, Err: cause}
	}

	run.State = StateFailed
	run.CompletedAt = time.Now()
	run.Error = defErr.Error()
	result.Status = StateFailed
	result.Cause = defErr
	result.Elapsed = time.Since(started)
	d.emitter.EmitRunFailed(ctx, run, defErr)
	d.logger.Error("run failed on definition error",
		slog.String("run_id", run.ID.String()),
		slog.String("pipeline", run.Pipeline),
		slog.String("error", defErr.Error()),
	)
	return result, defErr
}

// asTerminal normalizes a submission error into a TerminalError. The
// engine boundary already returns terminal errors; anything else is a
// boundary violation treated as a single-attempt terminal failure.
func asTerminal(contractName string, err error) *engine.TerminalError {
	var terminal *engine.TerminalError
	if errors.As(err, &terminal) {
		return terminal
	}
	return &engine.TerminalError{Contract: contractName, Err: err, Attempts: 1}
}
