package pipeline

import (
	"fmt"

	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/policy"
	"github.com/xraph/conduit/stage"
)

// ETL builds the data-processing pipeline: process the dataset, store
// the processed records, and append a completion audit entry. A
// terminal failure of any stage triggers a failure audit entry before
// the run settles as failed.
func ETL() *stage.Definition {
	return &stage.Definition{
		Name: PipelineETL,
		Stages: []stage.Stage{
			stage.Invoke("process", ContractProcess, ProcessTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"dataset_id": s.Input()["dataset_id"],
						"mode":       ModeStandard,
					}, nil
				}),

			stage.Invoke("store", ContractStore, StoreTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"category": "processed",
						"results":  s.MustOutput("process")["records"],
					}, nil
				}),

			// Audit entries get one attempt; a flaky audit sink must
			// not hold a finished run open through a backoff cycle.
			stage.Invoke("audit", ContractAudit, AuditTimeout, policy.Single(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"pipeline": PipelineETL,
						"status":   "completed",
						"detail":   fmt.Sprintf("processed %v records", s.MustOutput("process")["record_count"]),
					}, nil
				}),
		},
		OnFailure: []stage.Compensation{
			stage.Compensate("audit-failure", ContractAudit, AuditTimeout,
				func(s *stage.Scope, cause error) (contract.Payload, error) {
					return contract.Payload{
						"pipeline": PipelineETL,
						"status":   "failed",
						"detail":   cause.Error(),
					}, nil
				}),
		},
	}
}
