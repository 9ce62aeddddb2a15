// Package engine defines the boundary to the durable execution engine:
// the step submission contract, the worker registration contract, and
// the failure taxonomy shared by the orchestration layer.
//
// The engine behind this boundary persists workflow history, dispatches
// step invocations to workers, enforces timeouts, retries transient
// failures per the declared policy, and replays orchestration logic
// deterministically after a crash. Conduit never implements any of that
// itself — it submits requests and consumes classified outcomes.
//
// # Failure classification
//
// Step handlers fail with either a transient or a terminal error:
//
//	return engine.Transient(err) // retried per the step's RetryPolicy
//	return engine.Terminal(err)  // never retried
//
// An unclassified error is treated as transient, matching the engine
// default. SubmitStep only ever surfaces *TerminalError (retries are
// absorbed behind the boundary) or a *DefinitionError for programming
// errors that must not be retried at all.
package engine
