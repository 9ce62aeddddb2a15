package driver

import (
	"context"
	"time"
)

// Emitter receives run lifecycle events from the driver. The extension
// registry implements it; a no-op emitter is used when none is wired.
// Emitter calls must never block or fail the run.
type Emitter interface {
	EmitRunStarted(ctx context.Context, run *Run)
	EmitStageCompleted(ctx context.Context, run *Run, stage string, attempts int, elapsed time.Duration)
	EmitStageFailed(ctx context.Context, run *Run, stage string, err error)
	EmitCompensationExecuted(ctx context.Context, run *Run, compensation string, compErr error)
	EmitRunCompleted(ctx context.Context, run *Run, elapsed time.Duration)
	EmitRunFailed(ctx context.Context, run *Run, err error)
	EmitRunCancelled(ctx context.Context, run *Run)
}

// NopEmitter discards all lifecycle events.
type NopEmitter struct{}

func (NopEmitter) EmitRunStarted(context.Context, *Run)                                 {}
func (NopEmitter) EmitStageCompleted(context.Context, *Run, string, int, time.Duration) {}
func (NopEmitter) EmitStageFailed(context.Context, *Run, string, error)                 {}
func (NopEmitter) EmitCompensationExecuted(context.Context, *Run, string, error)        {}
func (NopEmitter) EmitRunCompleted(context.Context, *Run, time.Duration)                {}
func (NopEmitter) EmitRunFailed(context.Context, *Run, error)                           {}
func (NopEmitter) EmitRunCancelled(context.Context, *Run)                               {}
