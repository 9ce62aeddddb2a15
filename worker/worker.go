// Package worker runs pipeline executions on behalf of the engine: it
// registers the process's pipelines and contracts under a build ID,
// caps concurrent runs, and drains gracefully on shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/driver"
	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/ext"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/pipeline"
)

// Worker executes pipeline runs against an engine.
type Worker struct {
	engine     engine.Engine
	driver     *driver.Driver
	pipelines  *pipeline.Registry
	contracts  []string
	extensions *ext.Registry
	cfg        conduit.Config
	workerID   id.WorkerID
	logger     *slog.Logger

	runSem *semaphore.Weighted

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

// Option configures a Worker.
type Option func(*Worker)

// WithConfig sets the worker configuration. Defaults come from
// conduit.DefaultConfig.
func WithConfig(cfg conduit.Config) Option {
	return func(w *Worker) { w.cfg = cfg }
}

// WithExtensions sets the extension registry notified of worker
// lifecycle events.
func WithExtensions(extensions *ext.Registry) Option {
	return func(w *Worker) { w.extensions = extensions }
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithContracts sets the step contract names the worker declares to
// the engine. Defaults to the built-in pipeline contracts.
func WithContracts(names []string) Option {
	return func(w *Worker) { w.contracts = names }
}

// New creates a Worker executing pipelines from the registry through
// the driver.
func New(eng engine.Engine, drv *driver.Driver, pipelines *pipeline.Registry, opts ...Option) *Worker {
	w := &Worker{
		engine:    eng,
		driver:    drv,
		pipelines: pipelines,
		contracts: pipeline.ContractNames(),
		cfg:       conduit.DefaultConfig(),
		workerID:  id.NewWorkerID(),
		logger:    slog.Default(),
		active:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.runSem = semaphore.NewWeighted(int64(w.cfg.MaxConcurrentRuns))
	return w
}

// WorkerID returns the worker's unique identifier.
func (w *Worker) WorkerID() id.WorkerID { return w.workerID }

// Start registers the worker with the engine and begins accepting
// runs.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	reg := engine.WorkerRegistration{
		TaskQueue:          w.cfg.TaskQueue,
		BuildID:            w.cfg.BuildID,
		Pipelines:          w.pipelines.Names(),
		Contracts:          w.contracts,
		MaxConcurrentRuns:  w.cfg.MaxConcurrentRuns,
		MaxConcurrentSteps: w.cfg.MaxConcurrentSteps,
	}
	if err := w.engine.RegisterWorker(ctx, reg); err != nil {
		return fmt.Errorf("register worker on %q: %w", w.cfg.TaskQueue, err)
	}
	w.running = true

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_queue", w.cfg.TaskQueue),
		slog.String("build_id", w.cfg.BuildID),
		slog.Int("max_concurrent_runs", w.cfg.MaxConcurrentRuns),
		slog.Any("pipelines", reg.Pipelines),
	)
	if w.extensions != nil {
		w.extensions.EmitWorkerStarted(ctx, w.workerID, w.cfg.TaskQueue)
	}
	return nil
}

// Execute runs one pipeline to its terminal state, holding a run slot
// for the duration. It blocks when the worker is already at its
// concurrent run cap. A nil runID gets a generated one.
func (w *Worker) Execute(ctx context.Context, runID id.RunID, pipelineName string, input contract.Payload, opts ...driver.RunOption) (*driver.Result, error) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil, conduit.ErrWorkerNotStarted
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	def, err := w.pipelines.Lookup(pipelineName)
	if err != nil {
		return nil, err
	}

	if err := w.runSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer w.runSem.Release(1)

	if runID.IsNil() {
		runID = id.NewRunID()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.track(runID.String(), cancel)
	defer w.untrack(runID.String())

	return w.driver.Run(runCtx, def, input, append([]driver.RunOption{driver.WithRunID(runID)}, opts...)...)
}

// Stop drains the worker: no new runs are accepted, and active runs
// get until ctx's deadline to finish before they are cancelled.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopping", slog.String("worker_id", w.workerID.String()))

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped gracefully")
	case <-ctx.Done():
		w.logger.Warn("worker shutdown timed out, cancelling active runs")
		w.cancelActive()
		w.wg.Wait()
	}

	if w.extensions != nil {
		w.extensions.EmitWorkerStopped(context.WithoutCancel(ctx), w.workerID)
		w.extensions.EmitShutdown(context.WithoutCancel(ctx))
	}
	return nil
}

func (w *Worker) track(runID string, cancel context.CancelFunc) {
	w.activeMu.Lock()
	w.active[runID] = cancel
	w.activeMu.Unlock()
}

func (w *Worker) untrack(runID string) {
	w.activeMu.Lock()
	delete(w.active, runID)
	w.activeMu.Unlock()
}

// CancelRun cancels one active run by ID. Unknown IDs are a no-op
// returning false.
func (w *Worker) CancelRun(runID id.RunID) bool {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()

	cancel, ok := w.active[runID.String()]
	if ok {
		cancel()
	}
	return ok
}

func (w *Worker) cancelActive() {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	for runID, cancel := range w.active {
		w.logger.Warn("cancelling active run", slog.String("run_id", runID))
		cancel()
	}
}
