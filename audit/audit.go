// Package audit records pipeline lifecycle outcomes to a pluggable
// recorder. Wired as an extension, it guarantees one terminal audit
// event per run — completed, failed, or cancelled — plus an event for
// every terminal stage failure and failed compensation.
//
// Recorder failures are logged by the extension registry and never
// block or fail the run.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/id"
)

// Kind classifies an audit event.
type Kind string

const (
	KindRunCompleted       Kind = "run_completed"
	KindRunFailed          Kind = "run_failed"
	KindRunCancelled       Kind = "run_cancelled"
	KindStageFailed        Kind = "stage_failed"
	KindCompensationFailed Kind = "compensation_failed"
)

// Event is one audit record.
type Event struct {
	ID       id.AuditID    `json:"id"`
	RunID    id.RunID      `json:"run_id"`
	Pipeline string        `json:"pipeline"`
	Kind     Kind          `json:"kind"`
	Stage    string        `json:"stage,omitempty"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	At       time.Time     `json:"at"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, ev Event) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Extension bridges run lifecycle hooks to a Recorder.
type Extension struct {
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the audit extension.
type Option func(*Extension)

// WithLogger sets the extension's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// New creates an audit extension writing to rec.
func New(rec Recorder, opts ...Option) *Extension {
	e := &Extension{
		rec:    rec,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// OnRunCompleted records the terminal event for a successful run.
func (e *Extension) OnRunCompleted(ctx context.Context, run *driver.Run, elapsed time.Duration) error {
	return e.record(ctx, Event{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Kind:     KindRunCompleted,
		Elapsed:  elapsed,
	})
}

// OnRunFailed records the terminal event for a failed run.
func (e *Extension) OnRunFailed(ctx context.Context, run *driver.Run, err error) error {
	return e.record(ctx, Event{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Kind:     KindRunFailed,
		Error:    err.Error(),
	})
}

// OnRunCancelled records the terminal event for a cancelled run.
func (e *Extension) OnRunCancelled(ctx context.Context, run *driver.Run) error {
	return e.record(ctx, Event{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Kind:     KindRunCancelled,
	})
}

// OnStageFailed records a terminal stage failure, absorbed or not.
func (e *Extension) OnStageFailed(ctx context.Context, run *driver.Run, stage string, err error) error {
	return e.record(ctx, Event{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Kind:     KindStageFailed,
		Stage:    stage,
		Error:    err.Error(),
	})
}

// OnCompensationExecuted records only failed compensations; successful
// ones are routine.
func (e *Extension) OnCompensationExecuted(ctx context.Context, run *driver.Run, compensation string, compErr error) error {
	if compErr == nil {
		return nil
	}
	return e.record(ctx, Event{
		RunID:    run.ID,
		Pipeline: run.Pipeline,
		Kind:     KindCompensationFailed,
		Stage:    compensation,
		Error:    compErr.Error(),
	})
}

func (e *Extension) record(ctx context.Context, ev Event) error {
	ev.ID = id.NewAuditID()
	ev.At = e.now()
	return e.rec.Record(ctx, ev)
}
