// Package middleware provides composable middleware for the step
// submission path. Middleware wraps each SubmitStep call synchronously
// and can observe or modify it (log, trace, record metrics, recover
// from panics) before the request crosses the engine boundary.
package middleware
