// Package driver walks a pipeline definition stage by stage, submitting
// each step invocation to the durable execution engine and accumulating
// outputs for later stages.
//
// The walk is the deterministic half of the system: between suspension
// points it only evaluates pure predicates and input builders over the
// run scope. All side effects, retries, and timeouts live behind the
// engine boundary, so the engine can replay the walk from the beginning
// after a crash and arrive at the same sequence of submissions.
//
// A run terminates in exactly one of three states: completed, failed
// (with compensations attempted), or cancelled (compensations skipped).
package driver
