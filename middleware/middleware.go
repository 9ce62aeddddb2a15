package middleware

import (
	"context"

	"github.com/xraph/conduit/engine"
)

// Middleware wraps a step submission with cross-cutting logic. It
// receives the current context, the request being submitted, and the
// next submitter to call. Middleware MUST call next to continue the
// chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (engine.StepResult, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, tracing, recovery) executes as:
//
//	logging → tracing → recovery → submit
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (engine.StepResult, error) {
		// Build the chain from the end backwards.
		wrapped := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			inner := wrapped
			wrapped = func(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
				return mw(ctx, req, inner)
			}
		}
		return wrapped(ctx, req)
	}
}

// Wrap applies a middleware chain around a submitter and returns the
// wrapped submitter.
func Wrap(submit engine.SubmitFunc, mws ...Middleware) engine.SubmitFunc {
	if len(mws) == 0 {
		return submit
	}
	chain := Chain(mws...)
	return func(ctx context.Context, req engine.StepRequest) (engine.StepResult, error) {
		return chain(ctx, req, submit)
	}
}
