// Package policy defines per-step retry policies: pure value objects
// declaring how the execution engine should space and bound retries.
// The orchestration layer never enforces these policies itself — it
// declares them to the engine with every step submission.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/xraph/conduit"
)

// RetryPolicy declares retry scheduling for one step invocation.
//
// Invariants, checked at construction: InitialBackoff > 0,
// BackoffMultiplier >= 1, MaxAttempts >= 1, and MaxBackoff either zero
// (uncapped) or >= InitialBackoff.
type RetryPolicy struct {
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries. Zero means uncapped.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each attempt.
	BackoffMultiplier float64

	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
}

// New validates and returns a RetryPolicy. Invariant violations fail
// fast with conduit.ErrInvalidPolicy — a definition bug, not a runtime
// condition.
func New(initial, maxBackoff time.Duration, multiplier float64, maxAttempts int) (RetryPolicy, error) {
	p := RetryPolicy{
		InitialBackoff:    initial,
		MaxBackoff:        maxBackoff,
		BackoffMultiplier: multiplier,
		MaxAttempts:       maxAttempts,
	}
	if err := p.validate(); err != nil {
		return RetryPolicy{}, err
	}
	return p, nil
}

// MustNew is like New but panics on error. Use for statically declared
// policies where a failure is a programming error.
func MustNew(initial, maxBackoff time.Duration, multiplier float64, maxAttempts int) RetryPolicy {
	p, err := New(initial, maxBackoff, multiplier, maxAttempts)
	if err != nil {
		panic(err)
	}
	return p
}

// Single returns a policy with exactly one attempt and no backoff.
// Used by audit/compensation steps that must not be retried.
func Single() RetryPolicy {
	return RetryPolicy{
		InitialBackoff:    time.Second,
		BackoffMultiplier: 1,
		MaxAttempts:       1,
	}
}

func (p RetryPolicy) validate() error {
	if p.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff %v must be positive: %w", p.InitialBackoff, conduit.ErrInvalidPolicy)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier %v must be >= 1: %w", p.BackoffMultiplier, conduit.ErrInvalidPolicy)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts %d must be >= 1: %w", p.MaxAttempts, conduit.ErrInvalidPolicy)
	}
	if p.MaxBackoff != 0 && p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max backoff %v below initial backoff %v: %w", p.MaxBackoff, p.InitialBackoff, conduit.ErrInvalidPolicy)
	}
	return nil
}

// Backoff returns the delay before retry attempt (1-indexed: attempt 1
// is the first retry after the initial failure):
//
//	min(MaxBackoff, InitialBackoff * BackoffMultiplier^(attempt-1))
//
// Pure: the same policy and attempt always produce the same delay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1)))
	if d < 0 {
		// Overflow from a large exponent; clamp to the cap.
		d = math.MaxInt64
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
