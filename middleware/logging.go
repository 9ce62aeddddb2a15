package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conduit/engine"
)

// Logging returns middleware that logs every step submission: one line
// when the request crosses the boundary, one when the outcome comes
// back. Transient failures are retried behind the boundary and never
// appear here; only terminal outcomes do.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req engine.StepRequest, next engine.SubmitFunc) (engine.StepResult, error) {
		logger.Debug("submitting step",
			slog.String("contract", req.Contract),
			slog.Duration("timeout", req.Timeout),
			slog.Int("max_attempts", req.Policy.MaxAttempts),
		)

		start := time.Now()
		res, err := next(ctx, req)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("step failed",
				slog.String("contract", req.Contract),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return res, err
		}

		logger.Debug("step completed",
			slog.String("contract", req.Contract),
			slog.Int("attempts", res.Attempts),
			slog.Duration("elapsed", elapsed),
		)
		return res, nil
	}
}
