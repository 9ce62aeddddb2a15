// Package conduit provides a typed orchestration layer for multi-step data
// pipelines (ETL, analytics, ML) running on a durable execution engine.
//
// Conduit owns the pipeline definitions, step contracts, and retry/timeout
// policies; durability, retry scheduling, and crash-tolerant replay belong
// to the engine behind the conduit/engine boundary. Pipeline authors supply
// a static stage graph and typed input/output contracts; the driver walks
// the graph, submits each step to the engine, and decides success, failure,
// or compensation at every branch point.
//
// # Quick Start
//
//	eng := local.New()
//	pipeline.RegisterHandlers(eng)
//
//	d := driver.New(eng, pipeline.Contracts(), driver.WithLogger(logger))
//	result, err := d.Run(ctx, pipeline.ETL(), pipeline.ETLInput{DatasetID: "orders"}.Payload())
//
// # Architecture
//
// Each pipeline definition is a deterministic function of its input and the
// outputs of earlier stages. Nothing inside a definition reads the clock,
// draws randomness, or performs I/O; all effects happen in engine-dispatched
// steps. This keeps the driver's stage walk replayable: after a crash the
// engine re-executes the walk and every already-completed step is served
// from history instead of being re-invoked.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package conduit
