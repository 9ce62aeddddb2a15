// Package pipeline defines the built-in pipelines: the ETL pipeline
// ("data-processing"), the analytics pipeline ("analytics"), and the
// ML training pipeline ("ml-pipeline"), together with the step
// contracts they invoke and the retry policies and timeouts each step
// declares.
//
// Definitions here are the canonical examples of the stage DSL: pure
// input builders over the run scope, a conditional best-effort email
// stage, and a failure-audit compensation on the ETL pipeline.
package pipeline
