package pipeline

import "github.com/xraph/conduit/contract"

// Step contract names shared by definitions, handlers, and workers.
const (
	ContractProcess  = "process_data"
	ContractAnalyze  = "analyze_data"
	ContractReport   = "generate_report"
	ContractEmail    = "send_email_report"
	ContractStore    = "store_results"
	ContractTrain    = "train_model"
	ContractValidate = "validate_model"
	ContractAudit    = "audit_log"
)

// Processing modes accepted by the process_data contract.
const (
	ModeStandard   = "standard"
	ModeMLTraining = "ml_training"
)

// Contracts builds the frozen registry of all built-in step contracts.
func Contracts() *contract.Registry {
	reg := contract.NewRegistry()

	reg.MustRegister(contract.New(ContractProcess,
		contract.Schema{
			"dataset_id": contract.String,
			"mode":       contract.String,
		},
		contract.Schema{
			"record_count": contract.Int,
			"records":      contract.Object,
		},
	))

	reg.MustRegister(contract.New(ContractAnalyze,
		contract.Schema{
			"dataset_id": contract.String,
			"window":     contract.String,
		},
		contract.Schema{
			"metrics": contract.Object,
			"score":   contract.Float,
		},
	))

	reg.MustRegister(contract.New(ContractReport,
		contract.Schema{
			"kind": contract.String,
			"data": contract.Object,
		},
		contract.Schema{
			"report_url": contract.String,
			"summary":    contract.String,
		},
	))

	reg.MustRegister(contract.New(ContractEmail,
		contract.Schema{
			"recipient":  contract.String,
			"report_url": contract.String,
		},
		contract.Schema{
			"sent": contract.Bool,
		},
	))

	reg.MustRegister(contract.New(ContractStore,
		contract.Schema{
			"category": contract.String,
			"results":  contract.Object,
		},
		contract.Schema{
			"location": contract.String,
			"stored":   contract.Bool,
		},
	))

	reg.MustRegister(contract.New(ContractTrain,
		contract.Schema{
			"records": contract.Object,
			"epochs":  contract.Int,
		},
		contract.Schema{
			"model_id": contract.String,
			"accuracy": contract.Float,
		},
	))

	reg.MustRegister(contract.New(ContractValidate,
		contract.Schema{
			"model_id": contract.String,
		},
		contract.Schema{
			"passed":   contract.Bool,
			"accuracy": contract.Float,
		},
	))

	reg.MustRegister(contract.New(ContractAudit,
		contract.Schema{
			"pipeline": contract.String,
			"status":   contract.String,
			"detail":   contract.String,
		},
		contract.Schema{
			"recorded": contract.Bool,
		},
	))

	reg.Freeze()
	return reg
}

// ContractNames lists every built-in contract, for worker registration.
func ContractNames() []string {
	return []string{
		ContractProcess,
		ContractAnalyze,
		ContractReport,
		ContractEmail,
		ContractStore,
		ContractTrain,
		ContractValidate,
		ContractAudit,
	}
}
