// Package observability provides an OpenTelemetry-based metrics
// extension for Conduit. The MetricsExtension implements lifecycle
// hooks to record system-wide counters for run starts, completions,
// failures, cancellations, stage failures, and compensations, plus a
// run duration histogram.
//
// For per-submission tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
