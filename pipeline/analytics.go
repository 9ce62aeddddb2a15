package pipeline

import (
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/stage"
)

// Analytics builds the analytics pipeline: analyze the dataset,
// generate a report, optionally email it, and store the analysis. The
// email stage only runs when the input names a recipient, and its
// failure never fails the run — a lost notification is not worth
// discarding the analysis over.
func Analytics() *stage.Definition {
	return &stage.Definition{
		Name: PipelineAnalytics,
		Stages: []stage.Stage{
			stage.Invoke("analyze", ContractAnalyze, AnalyzeTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"dataset_id": s.Input()["dataset_id"],
						"window":     s.Input()["window"],
					}, nil
				}),

			stage.Invoke("report", ContractReport, ReportTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"kind": "analytics",
						"data": s.MustOutput("analyze")["metrics"],
					}, nil
				}),

			stage.Invoke("email", ContractEmail, EmailTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"recipient":  s.Input()["recipient"],
						"report_url": s.MustOutput("report")["report_url"],
					}, nil
				}).
				When(func(s *stage.Scope) bool {
					recipient, _ := s.Input()["recipient"].(string)
					return recipient != ""
				}).
				BestEffort(),

			stage.Invoke("store", ContractStore, StoreAnalyticsTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"category": "analytics",
						"results": map[string]any{
							"metrics":    s.MustOutput("analyze")["metrics"],
							"score":      s.MustOutput("analyze")["score"],
							"report_url": s.MustOutput("report")["report_url"],
						},
					}, nil
				}),
		},
	}
}
