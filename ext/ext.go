// Package ext defines the extension system for Conduit.
// Extensions are notified of lifecycle events (run started, stage
// completed, run failed, etc.) and can react to them — audit records,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/id"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// RunStarted is called when a pipeline run begins its stage walk.
type RunStarted interface {
	OnRunStarted(ctx context.Context, run *driver.Run) error
}

// StageCompleted is called after a stage's step invocation succeeds.
type StageCompleted interface {
	OnStageCompleted(ctx context.Context, run *driver.Run, stage string, attempts int, elapsed time.Duration) error
}

// StageFailed is called when a stage fails terminally, whether the
// failure aborts the run or is absorbed as best-effort.
type StageFailed interface {
	OnStageFailed(ctx context.Context, run *driver.Run, stage string, err error) error
}

// CompensationExecuted is called after each compensation attempt.
// compErr is nil when the compensation succeeded.
type CompensationExecuted interface {
	OnCompensationExecuted(ctx context.Context, run *driver.Run, compensation string, compErr error) error
}

// RunCompleted is called after a run finishes with every critical
// stage succeeded.
type RunCompleted interface {
	OnRunCompleted(ctx context.Context, run *driver.Run, elapsed time.Duration) error
}

// RunFailed is called when a run is aborted by a critical terminal
// failure or a definition error. Compensations have already executed.
type RunFailed interface {
	OnRunFailed(ctx context.Context, run *driver.Run, err error) error
}

// RunCancelled is called when a run is stopped by external
// cancellation. Compensations did not execute.
type RunCancelled interface {
	OnRunCancelled(ctx context.Context, run *driver.Run) error
}

// ──────────────────────────────────────────────────
// Worker lifecycle hooks
// ──────────────────────────────────────────────────

// WorkerStarted is called after a worker registers with the engine and
// begins serving its task queue.
type WorkerStarted interface {
	OnWorkerStarted(ctx context.Context, workerID id.WorkerID, taskQueue string) error
}

// WorkerStopped is called after a worker drains and stops.
type WorkerStopped interface {
	OnWorkerStopped(ctx context.Context, workerID id.WorkerID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
