// Package local provides an in-process implementation of the engine
// boundary: a handler registry, per-attempt timeouts, retry scheduling
// per the declared policy, and a step concurrency cap.
//
// It exists for development and tests. It executes steps but persists
// nothing, so it cannot replay a run after a crash; production
// deployments put a durable engine behind the same boundary.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/engine"
)

// Engine is an in-process durable-engine stand-in.
type Engine struct {
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu            sync.RWMutex
	handlers      map[string]engine.Handler
	registrations []engine.WorkerRegistration
}

// Option configures a local Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMaxConcurrentSteps caps simultaneously executing step attempts.
func WithMaxConcurrentSteps(n int) Option {
	return func(e *Engine) { e.sem = semaphore.NewWeighted(int64(n)) }
}

// New creates a local engine. The default step concurrency cap is 10.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		sem:      semaphore.NewWeighted(10),
		handlers: make(map[string]engine.Handler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds a handler to a contract name. Registering the same
// contract twice returns ErrDuplicateContract.
func (e *Engine) Register(contractName string, h engine.Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.handlers[contractName]; dup {
		return fmt.Errorf("handler for %q: %w", contractName, conduit.ErrDuplicateContract)
	}
	e.handlers[contractName] = h
	return nil
}

// MustRegister is Register panicking on error. For wiring at startup.
func (e *Engine) MustRegister(contractName string, h engine.Handler) {
	if err := e.Register(contractName, h); err != nil {
		panic(err)
	}
}

// RegisterWorker records the registration and verifies every declared
// contract has a handler bound.
func (e *Engine) RegisterWorker(ctx context.Context, reg engine.WorkerRegistration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range reg.Contracts {
		if _, ok := e.handlers[c]; !ok {
			return fmt.Errorf("contract %q: %w", c, conduit.ErrNoHandler)
		}
	}
	e.registrations = append(e.registrations, reg)
	e.logger.Info("worker registered",
		slog.String("task_queue", reg.TaskQueue),
		slog.String("build_id", reg.BuildID),
		slog.Int("contracts", len(reg.Contracts)),
	)
	return nil
}

// Registrations returns all worker registrations received so far.
func (e *Engine) Registrations() []engine.WorkerRegistration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]engine.WorkerRegistration(nil), e.registrations...)
}

// SubmitStep executes the step in-process: each attempt is bounded by
// the request timeout, transient failures are retried per the policy
// with backoff, and the result or a classified terminal failure comes
// back once retries are settled.
func (e *Engine) SubmitStep(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
	e.mu.RLock()
	h, ok := e.handlers[req.Contract]
	e.mu.RUnlock()
	if !ok {
		return engine.StepResult{}, &engine.DefinitionError{
			Stage: req.Contract,
			Err:   fmt.Errorf("contract %q: %w", req.Contract, conduit.ErrNoHandler),
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return engine.StepResult{}, err
	}
	defer e.sem.Release(1)

	start := time.Now()
	maxAttempts := req.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var timedOut bool

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := e.runAttempt(ctx, h, req)
		if err == nil {
			return engine.StepResult{
				Output:   out,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}, nil
		}
		if ctx.Err() != nil {
			return engine.StepResult{Attempts: attempt, Elapsed: time.Since(start)}, ctx.Err()
		}

		lastErr, timedOut = err, isAttemptTimeout(err)

		var terminal *engine.TerminalError
		if asTerminal(err, &terminal) {
			terminal.Contract = req.Contract
			terminal.Attempts = attempt
			return engine.StepResult{Attempts: attempt, Elapsed: time.Since(start)}, terminal
		}
		if engine.IsDefinition(err) {
			return engine.StepResult{Attempts: attempt, Elapsed: time.Since(start)}, err
		}

		// Transient: back off before the next attempt, if any.
		if attempt < maxAttempts {
			delay := req.Policy.Backoff(attempt)
			e.logger.Debug("step attempt failed, retrying",
				slog.String("contract", req.Contract),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)
			if err := sleep(ctx, delay); err != nil {
				return engine.StepResult{Attempts: attempt, Elapsed: time.Since(start)}, err
			}
		}
	}

	return engine.StepResult{Attempts: maxAttempts, Elapsed: time.Since(start)}, &engine.TerminalError{
		Contract:  req.Contract,
		Err:       unwrapTransient(lastErr),
		Attempts:  maxAttempts,
		Exhausted: true,
		Timeout:   timedOut,
	}
}

// runAttempt executes one handler call bounded by the step timeout,
// converting panics into transient failures.
func (e *Engine) runAttempt(ctx context.Context, h engine.Handler, req engine.StepRequest) (contract.Payload, error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	type outcome struct {
		out contract.Payload
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: engine.Transient(fmt.Errorf("handler panic: %v", r))}
			}
		}()
		out, err := h(attemptCtx, req.Input)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-attemptCtx.Done():
		// The handler goroutine is abandoned; a well-behaved handler
		// observes its context and returns shortly after.
		return nil, attemptTimeoutError{attemptCtx.Err()}
	}
}

// attemptTimeoutError marks a failure caused by the per-attempt
// deadline rather than the handler itself.
type attemptTimeoutError struct{ err error }

func (e attemptTimeoutError) Error() string { return "attempt timed out: " + e.err.Error() }
func (e attemptTimeoutError) Unwrap() error { return e.err }

func isAttemptTimeout(err error) bool {
	_, ok := err.(attemptTimeoutError)
	return ok
}

func asTerminal(err error, target **engine.TerminalError) bool {
	t, ok := err.(*engine.TerminalError)
	if ok {
		*target = t
	}
	return ok
}

// unwrapTransient strips the transient marker so the terminal error
// reports the underlying cause.
func unwrapTransient(err error) error {
	if t, ok := err.(*engine.TransientError); ok {
		return t.Err
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
