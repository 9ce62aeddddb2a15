package pipeline

import (
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/stage"
)

// ML builds the ml-pipeline: process the dataset in training mode,
// train a model on the processed records, validate it, then report and
// store the outcome. Processing gets the long timeout here because
// training-mode feature extraction dwarfs the standard path.
func ML() *stage.Definition {
	return &stage.Definition{
		Name: PipelineML,
		Stages: []stage.Stage{
			stage.Invoke("process", ContractProcess, ProcessTrainingTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"dataset_id": s.Input()["dataset_id"],
						"mode":       ModeMLTraining,
					}, nil
				}),

			stage.Invoke("train", ContractTrain, TrainTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"records": s.MustOutput("process")["records"],
						"epochs":  s.Input()["epochs"],
					}, nil
				}),

			stage.Invoke("validate", ContractValidate, ValidateTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"model_id": s.MustOutput("train")["model_id"],
					}, nil
				}),

			stage.Invoke("report", ContractReport, ModelReportTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"kind": "ml_model",
						"data": map[string]any{
							"model_id": s.MustOutput("train")["model_id"],
							"accuracy": s.MustOutput("validate")["accuracy"],
							"passed":   s.MustOutput("validate")["passed"],
						},
					}, nil
				}),

			stage.Invoke("store", ContractStore, StoreTimeout, StandardRetry(),
				func(s *stage.Scope) (contract.Payload, error) {
					return contract.Payload{
						"category": "ml_model",
						"results": map[string]any{
							"model_id": s.MustOutput("train")["model_id"],
							"accuracy": s.MustOutput("validate")["accuracy"],
						},
					}, nil
				}),
		},
	}
}
