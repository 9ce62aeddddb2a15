package driver

import (
	"time"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/id"
)

// State is the lifecycle state of a pipeline run.
type State string

const (
	// StatePending is a run that has been created but not started.
	StatePending State = "pending"

	// StateRunning is a run actively walking its stage graph.
	StateRunning State = "running"

	// StateCompensating is a run executing compensations after a
	// critical stage failed terminally.
	StateCompensating State = "compensating"

	// StateCompleted is a run whose every critical stage succeeded.
	StateCompleted State = "completed"

	// StateFailed is a run aborted by a critical terminal failure or a
	// definition error.
	StateFailed State = "failed"

	// StateCancelled is a run stopped by external cancellation. Distinct
	// from failed: remaining stages are skipped and compensations do
	// not execute.
	StateCancelled State = "cancelled"
)

// Run is the mutable record of one pipeline execution.
type Run struct {
	// ID uniquely identifies the run.
	ID id.RunID

	// Pipeline is the definition name this run executes.
	Pipeline string

	// State is the current lifecycle state.
	State State

	// Input is the original pipeline input.
	Input contract.Payload

	// StartedAt is when the walk began.
	StartedAt time.Time

	// CompletedAt is when the run reached a terminal state. Zero while
	// the run is live.
	CompletedAt time.Time

	// Error holds the terminal cause for failed runs, empty otherwise.
	Error string
}

// Outcome classifies one entry of a run's execution record.
type Outcome string

const (
	// OutcomeSucceeded is a stage that completed and contributed its
	// output to the scope.
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed is a critical stage that failed terminally and
	// aborted the run.
	OutcomeFailed Outcome = "failed"

	// OutcomeAbsorbed is a best-effort stage that failed terminally;
	// the failure was recorded and the walk continued.
	OutcomeAbsorbed Outcome = "absorbed"

	// OutcomeCompensated is a compensation that executed successfully.
	OutcomeCompensated Outcome = "compensated"

	// OutcomeCompensationFailed is a compensation that itself failed.
	// Recorded and logged, never masks the original cause.
	OutcomeCompensationFailed Outcome = "compensation_failed"
)

// StageRecord is one entry in a run's execution record. Skipped stages
// (false condition, replayed checkpoint) produce no entry.
type StageRecord struct {
	// Stage is the stage or compensation name.
	Stage string

	// Contract is the step contract that was invoked.
	Contract string

	// Attempts is how many attempts the engine made.
	Attempts int

	// Outcome classifies the entry.
	Outcome Outcome

	// Duration is the wall time of the suspension, retries included.
	Duration time.Duration

	// Error holds the failure message for failed and absorbed entries.
	Error string
}

// Result is the terminal outcome of a pipeline run.
type Result struct {
	// RunID identifies the run.
	RunID id.RunID

	// Pipeline is the definition name.
	Pipeline string

	// Status is the terminal state: completed, failed, or cancelled.
	Status State

	// Output is the output of the last executed stage on completion,
	// nil otherwise.
	Output contract.Payload

	// Cause is the terminal failure for failed runs and the context
	// error for cancelled runs. Nil on completion.
	Cause error

	// Record lists every executed stage and compensation in order.
	Record []StageRecord

	// Elapsed is the total wall time of the run.
	Elapsed time.Duration
}

// Succeeded reports whether the run completed.
func (r *Result) Succeeded() bool { return r.Status == StateCompleted }

// StageOutcome returns the recorded outcome for a stage name, or false
// if the stage produced no record entry (skipped or never reached).
func (r *Result) StageOutcome(stage string) (StageRecord, bool) {
	for _, rec := range r.Record {
		if rec.Stage == stage {
			return rec, true
		}
	}
	return StageRecord{}, false
}
