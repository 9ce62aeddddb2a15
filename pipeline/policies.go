package pipeline

import (
	"time"

	"github.com/xraph/conduit/policy"
)

// StandardRetry is the retry policy every built-in step declares:
// exponential backoff from one second, capped at thirty, three
// attempts in total.
func StandardRetry() policy.RetryPolicy {
	return policy.MustNew(time.Second, 30*time.Second, 2.0, 3)
}

// Per-step attempt timeouts. Training gets the long budget; audit is
// short because a stuck audit must not hold a run open.
const (
	ProcessTimeout         = 10 * time.Minute
	ProcessTrainingTimeout = 20 * time.Minute
	TrainTimeout           = 30 * time.Minute
	ValidateTimeout        = 10 * time.Minute
	AnalyzeTimeout         = 15 * time.Minute
	ReportTimeout          = 5 * time.Minute
	ModelReportTimeout     = 3 * time.Minute
	EmailTimeout           = 2 * time.Minute
	StoreTimeout           = 5 * time.Minute
	StoreAnalyticsTimeout  = 3 * time.Minute
	AuditTimeout           = time.Minute
)
