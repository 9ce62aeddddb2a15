// Package client submits pipeline runs asynchronously and exposes a
// handle to await or cancel each one. Inputs are validated before
// submission so malformed requests fail fast instead of mid-run.
package client

import (
	"context"
	"log/slog"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/pipeline"
)

// Executor runs pipelines; the worker implements it.
type Executor interface {
	Execute(ctx context.Context, runID id.RunID, pipelineName string, input contract.Payload, opts ...driver.RunOption) (*driver.Result, error)
	CancelRun(runID id.RunID) bool
}

// Client submits pipeline runs to an executor.
type Client struct {
	executor  Executor
	pipelines *pipeline.Registry
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client submitting to exec. The registry gates
// submissions: unknown pipelines are rejected synchronously.
func New(exec Executor, pipelines *pipeline.Registry, opts ...Option) *Client {
	c := &Client{
		executor:  exec,
		pipelines: pipelines,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle tracks one submitted run.
type Handle struct {
	runID    id.RunID
	pipeline string
	cancel   func() bool

	done chan struct{}
	res  *driver.Result
	err  error
}

// RunID returns the run's identifier, available immediately after
// submission.
func (h *Handle) RunID() id.RunID { return h.runID }

// Pipeline returns the pipeline name the run executes.
func (h *Handle) Pipeline() string { return h.pipeline }

// Await blocks until the run reaches a terminal state or ctx expires.
// Awaiting the same handle repeatedly returns the same result.
func (h *Handle) Await(ctx context.Context) (*driver.Result, error) {
	select {
	case <-h.done:
		return h.res, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests cancellation of the run. It reports whether the run
// was still active.
func (h *Handle) Cancel() bool { return h.cancel() }

// Submit starts a pipeline run asynchronously and returns its handle.
// The run outlives the submission context; only Cancel stops it.
func (c *Client) Submit(ctx context.Context, pipelineName string, input contract.Payload) (*Handle, error) {
	if _, err := c.pipelines.Lookup(pipelineName); err != nil {
		return nil, err
	}

	runID := id.NewRunID()
	h := &Handle{
		runID:    runID,
		pipeline: pipelineName,
		cancel:   func() bool { return c.executor.CancelRun(runID) },
		done:     make(chan struct{}),
	}

	c.logger.Info("run submitted",
		slog.String("run_id", runID.String()),
		slog.String("pipeline", pipelineName),
	)

	go func() {
		defer close(h.done)
		h.res, h.err = c.executor.Execute(context.WithoutCancel(ctx), runID, pipelineName, input)
	}()

	return h, nil
}

// Run is Submit followed by Await: it blocks until the run settles.
func (c *Client) Run(ctx context.Context, pipelineName string, input contract.Payload) (*driver.Result, error) {
	h, err := c.Submit(ctx, pipelineName, input)
	if err != nil {
		return nil, err
	}
	return h.Await(ctx)
}

// SubmitETL validates and submits a data-processing run.
func (c *Client) SubmitETL(ctx context.Context, in pipeline.ETLInput) (*Handle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.Submit(ctx, pipeline.PipelineETL, in.Payload())
}

// SubmitAnalytics validates and submits an analytics run.
func (c *Client) SubmitAnalytics(ctx context.Context, in pipeline.AnalyticsInput) (*Handle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.Submit(ctx, pipeline.PipelineAnalytics, in.Payload())
}

// SubmitML validates and submits an ml-pipeline run.
func (c *Client) SubmitML(ctx context.Context, in pipeline.MLInput) (*Handle, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.Submit(ctx, pipeline.PipelineML, in.Payload())
}
