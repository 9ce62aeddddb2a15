package conduit

import (
	"os"
	"strconv"
	"time"
)

// Config holds worker-process configuration. It is read once at startup
// and treated as immutable afterwards.
type Config struct {
	// EngineAddress is the host:port of the durable execution engine.
	EngineAddress string

	// Namespace isolates this worker's pipelines within the engine.
	Namespace string

	// TaskQueue is the queue this worker polls for step invocations.
	TaskQueue string

	// BuildID identifies the worker build for engine-side version
	// compatibility gating.
	BuildID string

	// MaxConcurrentRuns caps the number of pipeline runs active on this
	// worker at once. Admission control only; not a correctness property.
	MaxConcurrentRuns int

	// MaxConcurrentSteps caps the number of in-flight step invocations.
	MaxConcurrentSteps int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EngineAddress:      "localhost:7233",
		Namespace:          "default",
		TaskQueue:          "pipeline-workers",
		BuildID:            "conduit-v1.0.0",
		MaxConcurrentRuns:  10,
		MaxConcurrentSteps: 10,
		ShutdownTimeout:    30 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to DefaultConfig for anything unset:
//
//	ENGINE_ADDRESS, CONDUIT_NAMESPACE, TASK_QUEUE, BUILD_ID,
//	MAX_CONCURRENT_RUNS, MAX_CONCURRENT_STEPS
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("ENGINE_ADDRESS"); v != "" {
		cfg.EngineAddress = v
	}
	if v := os.Getenv("CONDUIT_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("TASK_QUEUE"); v != "" {
		cfg.TaskQueue = v
	}
	if v := os.Getenv("BUILD_ID"); v != "" {
		cfg.BuildID = v
	}
	if n, ok := envInt("MAX_CONCURRENT_RUNS"); ok {
		cfg.MaxConcurrentRuns = n
	}
	if n, ok := envInt("MAX_CONCURRENT_STEPS"); ok {
		cfg.MaxConcurrentSteps = n
	}

	return cfg
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
