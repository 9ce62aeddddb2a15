// Package stage defines the static execution graph of a pipeline: an
// ordered sequence of step invocations, conditionals over prior outputs,
// and best-effort compensations that run after a terminal failure.
//
// Definitions are data, not control flow. Every input-building function
// and predicate must be a pure function of the pipeline input and prior
// stage outputs — no clock reads, no randomness, no I/O. The durable
// execution engine may re-execute the whole stage walk from the
// beginning after a crash, and any impurity would diverge on replay.
package stage

import (
	"fmt"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/policy"
)

// Scope carries the pipeline input and the accumulated outputs of
// completed stages. Input builders and predicates read from it; only the
// driver writes to it.
type Scope struct {
	input   contract.Payload
	outputs map[string]contract.Payload
}

// NewScope creates a Scope for one run.
func NewScope(input contract.Payload) *Scope {
	return &Scope{
		input:   input,
		outputs: make(map[string]contract.Payload),
	}
}

// Input returns the original pipeline input.
func (s *Scope) Input() contract.Payload { return s.input }

// Output returns the output of a completed stage by stage name.
func (s *Scope) Output(stageName string) (contract.Payload, bool) {
	out, ok := s.outputs[stageName]
	return out, ok
}

// MustOutput returns the output of a completed stage, panicking if the
// stage has not completed. Definitions use it for stages that are
// guaranteed by graph order to have run already.
func (s *Scope) MustOutput(stageName string) contract.Payload {
	out, ok := s.outputs[stageName]
	if !ok {
		panic(fmt.Sprintf("stage: output %q not available", stageName))
	}
	return out
}

// SetOutput records a completed stage's output. Called by the driver.
func (s *Scope) SetOutput(stageName string, out contract.Payload) {
	s.outputs[stageName] = out
}

// Completed reports whether a stage has an output recorded.
func (s *Scope) Completed(stageName string) bool {
	_, ok := s.outputs[stageName]
	return ok
}

// BuildFunc derives a step's input payload from the scope.
// Must be deterministic.
type BuildFunc func(s *Scope) (contract.Payload, error)

// Predicate gates a conditional stage. Must be deterministic.
type Predicate func(s *Scope) bool

// Stage is one Invoke node in a pipeline's execution graph.
type Stage struct {
	// Name identifies the stage within its definition. Unique.
	Name string

	// Contract is the step contract this stage invokes.
	Contract string

	// Timeout bounds one attempt of the invoked step.
	Timeout time.Duration

	// Policy declares retry scheduling for the invoked step.
	Policy policy.RetryPolicy

	// Build derives the step input from the scope.
	Build BuildFunc

	// Condition, when non-nil, gates execution. A false predicate skips
	// the stage without side effects; absence of the branch is not an
	// error.
	Condition Predicate

	// Optional marks the stage non-critical: a terminal failure is
	// recorded and absorbed, and the walk continues with the next stage.
	Optional bool
}

// Invoke creates an unconditional, critical stage.
func Invoke(name, contractName string, timeout time.Duration, pol policy.RetryPolicy, build BuildFunc) Stage {
	return Stage{
		Name:     name,
		Contract: contractName,
		Timeout:  timeout,
		Policy:   pol,
		Build:    build,
	}
}

// When returns a copy of the stage gated by pred.
func (st Stage) When(pred Predicate) Stage {
	st.Condition = pred
	return st
}

// BestEffort returns a copy of the stage marked non-critical: its
// terminal failure does not abort the pipeline.
func (st Stage) BestEffort() Stage {
	st.Optional = true
	return st
}

// CompensateFunc derives a compensation input from the scope and the
// terminal failure that triggered it.
type CompensateFunc func(s *Scope, cause error) (contract.Payload, error)

// Compensation is a best-effort corrective stage executed after a
// terminal failure of a critical stage. Its own failure is recorded and
// logged but never masks the original error.
type Compensation struct {
	Name     string
	Contract string
	Timeout  time.Duration
	Build    CompensateFunc
}

// Compensate creates a compensation hook.
func Compensate(name, contractName string, timeout time.Duration, build CompensateFunc) Compensation {
	return Compensation{
		Name:     name,
		Contract: contractName,
		Timeout:  timeout,
		Build:    build,
	}
}

// Definition is a pipeline's complete static execution graph.
type Definition struct {
	// Name identifies the pipeline type (e.g. "data-processing").
	Name string

	// Stages execute in order, subject to each stage's condition.
	Stages []Stage

	// OnFailure compensations run, in order, after any critical stage
	// fails terminally.
	OnFailure []Compensation
}

// Validate checks structural invariants: a non-empty stage list and
// unique stage names. Definition bugs surface here, before any step is
// dispatched.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition has no name: %w", conduit.ErrEmptyDefinition)
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("definition %q: %w", d.Name, conduit.ErrEmptyDefinition)
	}

	seen := make(map[string]struct{}, len(d.Stages))
	for _, st := range d.Stages {
		if st.Name == "" {
			return fmt.Errorf("definition %q: stage with empty name: %w", d.Name, conduit.ErrEmptyDefinition)
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("definition %q: duplicate stage name %q: %w", d.Name, st.Name, conduit.ErrEmptyDefinition)
		}
		seen[st.Name] = struct{}{}

		if st.Build == nil {
			return fmt.Errorf("definition %q: stage %q has no input builder: %w", d.Name, st.Name, conduit.ErrEmptyDefinition)
		}
	}
	return nil
}
