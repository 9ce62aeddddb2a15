package engine

import (
	"context"
	"time"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/policy"
)

// StepRequest describes one step invocation submitted to the engine.
type StepRequest struct {
	// Contract is the registered step contract name.
	Contract string

	// Input is the schema-conforming input payload.
	Input contract.Payload

	// Policy declares retry scheduling for transient failures.
	Policy policy.RetryPolicy

	// Timeout bounds a single attempt of the step.
	Timeout time.Duration
}

// StepResult is the successful outcome of a step invocation.
type StepResult struct {
	// Output is the schema-conforming output payload.
	Output contract.Payload

	// Attempts is the number of attempts the engine made, including
	// the successful one.
	Attempts int

	// Elapsed is the total wall time across attempts.
	Elapsed time.Duration
}

// Handler executes one step attempt. Implementations classify failures
// with Transient or Terminal; anything else is treated as transient.
type Handler func(ctx context.Context, input contract.Payload) (contract.Payload, error)

// WorkerRegistration declares a worker's capabilities to the engine.
type WorkerRegistration struct {
	// TaskQueue is the queue the worker polls.
	TaskQueue string

	// BuildID gates version compatibility: the engine only dispatches
	// runs started on a compatible build.
	BuildID string

	// Pipelines lists the pipeline definition names the worker serves.
	Pipelines []string

	// Contracts lists the step contract names the worker can execute.
	Contracts []string

	// MaxConcurrentRuns caps simultaneously active pipeline runs.
	MaxConcurrentRuns int

	// MaxConcurrentSteps caps simultaneously in-flight step invocations.
	MaxConcurrentSteps int
}

// Engine is the durable execution engine boundary consumed by the
// orchestration driver.
type Engine interface {
	// SubmitStep submits one step invocation and blocks until the engine
	// returns a success output or a terminal failure. Transient failures
	// and their retries are invisible to the caller. The returned error
	// is a *TerminalError, a *DefinitionError, or the context error when
	// the run is cancelled mid-flight.
	SubmitStep(ctx context.Context, req StepRequest) (StepResult, error)

	// RegisterWorker declares a worker's pipelines, contracts, and
	// concurrency caps to the engine.
	RegisterWorker(ctx context.Context, reg WorkerRegistration) error
}

// SubmitFunc adapts a plain function to the step submission boundary.
// Used to wrap an Engine with middleware.
type SubmitFunc func(ctx context.Context, req StepRequest) (StepResult, error)
