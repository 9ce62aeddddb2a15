package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/id"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type runStartedEntry struct {
	name string
	hook RunStarted
}

type stageCompletedEntry struct {
	name string
	hook StageCompleted
}

type stageFailedEntry struct {
	name string
	hook StageFailed
}

type compensationExecutedEntry struct {
	name string
	hook CompensationExecuted
}

type runCompletedEntry struct {
	name string
	hook RunCompleted
}

type runFailedEntry struct {
	name string
	hook RunFailed
}

type runCancelledEntry struct {
	name string
	hook RunCancelled
}

type workerStartedEntry struct {
	name string
	hook WorkerStarted
}

type workerStoppedEntry struct {
	name string
	hook WorkerStopped
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
// Registry satisfies the driver's emitter interface.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	runStarted           []runStartedEntry
	stageCompleted       []stageCompletedEntry
	stageFailed          []stageFailedEntry
	compensationExecuted []compensationExecutedEntry
	runCompleted         []runCompletedEntry
	runFailed            []runFailedEntry
	runCancelled         []runCancelledEntry
	workerStarted        []workerStartedEntry
	workerStopped        []workerStoppedEntry
	shutdown             []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(RunStarted); ok {
		r.runStarted = append(r.runStarted, runStartedEntry{name, h})
	}
	if h, ok := e.(StageCompleted); ok {
		r.stageCompleted = append(r.stageCompleted, stageCompletedEntry{name, h})
	}
	if h, ok := e.(StageFailed); ok {
		r.stageFailed = append(r.stageFailed, stageFailedEntry{name, h})
	}
	if h, ok := e.(CompensationExecuted); ok {
		r.compensationExecuted = append(r.compensationExecuted, compensationExecutedEntry{name, h})
	}
	if h, ok := e.(RunCompleted); ok {
		r.runCompleted = append(r.runCompleted, runCompletedEntry{name, h})
	}
	if h, ok := e.(RunFailed); ok {
		r.runFailed = append(r.runFailed, runFailedEntry{name, h})
	}
	if h, ok := e.(RunCancelled); ok {
		r.runCancelled = append(r.runCancelled, runCancelledEntry{name, h})
	}
	if h, ok := e.(WorkerStarted); ok {
		r.workerStarted = append(r.workerStarted, workerStartedEntry{name, h})
	}
	if h, ok := e.(WorkerStopped); ok {
		r.workerStopped = append(r.workerStopped, workerStoppedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Run event emitters
// ──────────────────────────────────────────────────

// EmitRunStarted notifies all extensions that implement RunStarted.
func (r *Registry) EmitRunStarted(ctx context.Context, run *driver.Run) {
	for _, e := range r.runStarted {
		if err := e.hook.OnRunStarted(ctx, run); err != nil {
			r.logHookError("OnRunStarted", e.name, err)
		}
	}
}

// EmitStageCompleted notifies all extensions that implement StageCompleted.
func (r *Registry) EmitStageCompleted(ctx context.Context, run *driver.Run, stage string, attempts int, elapsed time.Duration) {
	for _, e := range r.stageCompleted {
		if err := e.hook.OnStageCompleted(ctx, run, stage, attempts, elapsed); err != nil {
			r.logHookError("OnStageCompleted", e.name, err)
		}
	}
}

// EmitStageFailed notifies all extensions that implement StageFailed.
func (r *Registry) EmitStageFailed(ctx context.Context, run *driver.Run, stage string, stageErr error) {
	for _, e := range r.stageFailed {
		if err := e.hook.OnStageFailed(ctx, run, stage, stageErr); err != nil {
			r.logHookError("OnStageFailed", e.name, err)
		}
	}
}

// EmitCompensationExecuted notifies all extensions that implement
// CompensationExecuted.
func (r *Registry) EmitCompensationExecuted(ctx context.Context, run *driver.Run, compensation string, compErr error) {
	for _, e := range r.compensationExecuted {
		if err := e.hook.OnCompensationExecuted(ctx, run, compensation, compErr); err != nil {
			r.logHookError("OnCompensationExecuted", e.name, err)
		}
	}
}

// EmitRunCompleted notifies all extensions that implement RunCompleted.
func (r *Registry) EmitRunCompleted(ctx context.Context, run *driver.Run, elapsed time.Duration) {
	for _, e := range r.runCompleted {
		if err := e.hook.OnRunCompleted(ctx, run, elapsed); err != nil {
			r.logHookError("OnRunCompleted", e.name, err)
		}
	}
}

// EmitRunFailed notifies all extensions that implement RunFailed.
func (r *Registry) EmitRunFailed(ctx context.Context, run *driver.Run, runErr error) {
	for _, e := range r.runFailed {
		if err := e.hook.OnRunFailed(ctx, run, runErr); err != nil {
			r.logHookError("OnRunFailed", e.name, err)
		}
	}
}

// EmitRunCancelled notifies all extensions that implement RunCancelled.
func (r *Registry) EmitRunCancelled(ctx context.Context, run *driver.Run) {
	for _, e := range r.runCancelled {
		if err := e.hook.OnRunCancelled(ctx, run); err != nil {
			r.logHookError("OnRunCancelled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Worker event emitters
// ──────────────────────────────────────────────────

// EmitWorkerStarted notifies all extensions that implement WorkerStarted.
func (r *Registry) EmitWorkerStarted(ctx context.Context, workerID id.WorkerID, taskQueue string) {
	for _, e := range r.workerStarted {
		if err := e.hook.OnWorkerStarted(ctx, workerID, taskQueue); err != nil {
			r.logHookError("OnWorkerStarted", e.name, err)
		}
	}
}

// EmitWorkerStopped notifies all extensions that implement WorkerStopped.
func (r *Registry) EmitWorkerStopped(ctx context.Context, workerID id.WorkerID) {
	for _, e := range r.workerStopped {
		if err := e.hook.OnWorkerStopped(ctx, workerID); err != nil {
			r.logHookError("OnWorkerStopped", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the run.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
