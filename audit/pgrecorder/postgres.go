// Package pgrecorder persists audit events to PostgreSQL via pgx.
package pgrecorder

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/conduit/audit"
)

// Schema creates the audit events table. Run it at deploy time or via
// EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS conduit_audit_events (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	pipeline    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	stage       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	elapsed_ms  BIGINT NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conduit_audit_run ON conduit_audit_events (run_id);
CREATE INDEX IF NOT EXISTS idx_conduit_audit_pipeline ON conduit_audit_events (pipeline, recorded_at DESC);
`

// Recorder writes audit events to PostgreSQL.
type Recorder struct {
	pool *pgxpool.Pool
}

// New creates a Recorder on an existing connection pool.
func New(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// EnsureSchema applies the audit table schema.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Record implements audit.Recorder.
func (r *Recorder) Record(ctx context.Context, ev audit.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conduit_audit_events
			(id, run_id, pipeline, kind, stage, error, elapsed_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID.String(),
		ev.RunID.String(),
		ev.Pipeline,
		string(ev.Kind),
		ev.Stage,
		ev.Error,
		ev.Elapsed.Milliseconds(),
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("record audit event for %q: %w", ev.Pipeline, err)
	}
	return nil
}

// Recent returns up to n most recent events for a pipeline.
func (r *Recorder) Recent(ctx context.Context, pipeline string, n int) ([]audit.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, pipeline, kind, stage, error, elapsed_ms, recorded_at
		FROM conduit_audit_events
		WHERE pipeline = $1
		ORDER BY recorded_at DESC
		LIMIT $2`,
		pipeline, n,
	)
	if err != nil {
		return nil, fmt.Errorf("read audit events for %q: %w", pipeline, err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var ev audit.Event
		var elapsedMS int64
		var at time.Time
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Pipeline, &ev.Kind, &ev.Stage, &ev.Error, &elapsedMS, &at); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		ev.At = at
		events = append(events, ev)
	}
	return events, rows.Err()
}
