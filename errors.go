package conduit

import "errors"

var (
	// Contract registry errors.
	ErrDuplicateContract = errors.New("conduit: contract already registered")
	ErrUnknownContract   = errors.New("conduit: contract not registered")
	ErrRegistryFrozen    = errors.New("conduit: registry is frozen")

	// Policy errors.
	ErrInvalidPolicy = errors.New("conduit: invalid retry policy")

	// Definition errors.
	ErrUnknownPipeline = errors.New("conduit: pipeline not registered")
	ErrEmptyDefinition = errors.New("conduit: pipeline definition has no stages")

	// Run errors.
	ErrRunNotFound  = errors.New("conduit: run not found")
	ErrRunCancelled = errors.New("conduit: run cancelled")

	// Engine errors.
	ErrNoEngine           = errors.New("conduit: no engine configured")
	ErrNoHandler          = errors.New("conduit: no handler registered for contract")
	ErrWorkerNotStarted   = errors.New("conduit: worker not started")
	ErrWorkerShuttingDown = errors.New("conduit: worker shutting down")
)
