package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/xraph/conduit/engine"
)

// Recovery returns middleware that converts a panic on the submission
// path into a terminal error instead of crashing the worker. The stack
// trace is preserved in the error message.
func Recovery() Middleware {
	return func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (res engine.StepResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &engine.TerminalError{
					Contract: req.Contract,
					Err:      fmt.Errorf("panic during submission: %v\n%s", r, debug.Stack()),
					Attempts: 1,
				}
			}
		}()
		return next(ctx, req)
	}
}
