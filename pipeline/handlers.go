package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/xraph/conduit/engine"
	"github.com/xraph/conduit/engine/local"
)

// Typed step payloads. Field tags are the wire names the contracts
// declare.

type ProcessInput struct {
	DatasetID string `json:"dataset_id"`
	Mode      string `json:"mode"`
}

type ProcessOutput struct {
	RecordCount int            `json:"record_count"`
	Records     map[string]any `json:"records"`
}

type AnalyzeInput struct {
	DatasetID string `json:"dataset_id"`
	Window    string `json:"window"`
}

type AnalyzeOutput struct {
	Metrics map[string]any `json:"metrics"`
	Score   float64        `json:"score"`
}

type ReportInput struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

type ReportOutput struct {
	ReportURL string `json:"report_url"`
	Summary   string `json:"summary"`
}

type EmailInput struct {
	Recipient string `json:"recipient"`
	ReportURL string `json:"report_url"`
}

type EmailOutput struct {
	Sent bool `json:"sent"`
}

type StoreInput struct {
	Category string         `json:"category"`
	Results  map[string]any `json:"results"`
}

type StoreOutput struct {
	Location string `json:"location"`
	Stored   bool   `json:"stored"`
}

type TrainInput struct {
	Records map[string]any `json:"records"`
	Epochs  int            `json:"epochs"`
}

type TrainOutput struct {
	ModelID  string  `json:"model_id"`
	Accuracy float64 `json:"accuracy"`
}

type ValidateInput struct {
	ModelID string `json:"model_id"`
}

type ValidateOutput struct {
	Passed   bool    `json:"passed"`
	Accuracy float64 `json:"accuracy"`
}

type AuditInput struct {
	Pipeline string `json:"pipeline"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
}

type AuditOutput struct {
	Recorded bool `json:"recorded"`
}

// ProcessData simulates dataset processing. Record counts are derived
// from the dataset name so repeated runs over the same dataset agree.
func ProcessData(ctx context.Context, in ProcessInput) (ProcessOutput, error) {
	if in.Mode != ModeStandard && in.Mode != ModeMLTraining {
		return ProcessOutput{}, engine.Terminal(fmt.Errorf("unknown processing mode %q", in.Mode))
	}

	count := int(stableHash(in.DatasetID)%900) + 100
	return ProcessOutput{
		RecordCount: count,
		Records: map[string]any{
			"dataset_id": in.DatasetID,
			"mode":       in.Mode,
			"count":      count,
		},
	}, nil
}

// AnalyzeData simulates statistical analysis over a dataset window.
func AnalyzeData(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	h := stableHash(in.DatasetID + "/" + in.Window)
	return AnalyzeOutput{
		Metrics: map[string]any{
			"dataset_id": in.DatasetID,
			"window":     in.Window,
			"mean":       float64(h%1000) / 10,
			"p99":        float64(h%5000) / 10,
		},
		Score: float64(h%100) / 100,
	}, nil
}

// GenerateReport renders a report location for the given payload.
func GenerateReport(ctx context.Context, in ReportInput) (ReportOutput, error) {
	if in.Kind == "" {
		return ReportOutput{}, engine.Terminal(fmt.Errorf("report kind is required"))
	}
	h := stableHash(fmt.Sprintf("%s/%v", in.Kind, in.Data))
	return ReportOutput{
		ReportURL: fmt.Sprintf("reports/%s/%08x.html", in.Kind, h),
		Summary:   fmt.Sprintf("%s report over %d fields", in.Kind, len(in.Data)),
	}, nil
}

// SendEmailReport simulates delivering a report link. A malformed
// recipient is a terminal failure; retrying it cannot help.
func SendEmailReport(ctx context.Context, in EmailInput) (EmailOutput, error) {
	if !strings.Contains(in.Recipient, "@") {
		return EmailOutput{}, engine.Terminal(fmt.Errorf("invalid recipient %q", in.Recipient))
	}
	return EmailOutput{Sent: true}, nil
}

// StoreResults simulates persisting results to the warehouse.
func StoreResults(ctx context.Context, in StoreInput) (StoreOutput, error) {
	if in.Category == "" {
		return StoreOutput{}, engine.Terminal(fmt.Errorf("storage category is required"))
	}
	return StoreOutput{
		Location: fmt.Sprintf("warehouse/%s/%08x", in.Category, stableHash(fmt.Sprint(in.Results))),
		Stored:   true,
	}, nil
}

// TrainModel simulates model training; accuracy improves with epochs
// and plateaus below 1.0.
func TrainModel(ctx context.Context, in TrainInput) (TrainOutput, error) {
	if in.Epochs < 1 {
		return TrainOutput{}, engine.Terminal(fmt.Errorf("epochs must be positive, got %d", in.Epochs))
	}

	accuracy := 0.5 + float64(in.Epochs)*0.04
	if accuracy > 0.99 {
		accuracy = 0.99
	}
	return TrainOutput{
		ModelID:  fmt.Sprintf("model-%08x", stableHash(fmt.Sprintf("%v/%d", in.Records, in.Epochs))),
		Accuracy: accuracy,
	}, nil
}

// ValidateModel simulates validation against a holdout set.
func ValidateModel(ctx context.Context, in ValidateInput) (ValidateOutput, error) {
	accuracy := 0.75 + float64(stableHash(in.ModelID)%25)/100
	return ValidateOutput{
		Passed:   accuracy >= 0.8,
		Accuracy: accuracy,
	}, nil
}

// AuditLog simulates appending an audit entry.
func AuditLog(ctx context.Context, in AuditInput) (AuditOutput, error) {
	if in.Status == "" {
		return AuditOutput{}, engine.Terminal(fmt.Errorf("audit status is required"))
	}
	return AuditOutput{Recorded: true}, nil
}

// RegisterHandlers binds the simulated step implementations to a local
// engine. Production workers replace these with real ones contract by
// contract.
func RegisterHandlers(eng *local.Engine) {
	local.MustRegisterTyped(eng, ContractProcess, ProcessData)
	local.MustRegisterTyped(eng, ContractAnalyze, AnalyzeData)
	local.MustRegisterTyped(eng, ContractReport, GenerateReport)
	local.MustRegisterTyped(eng, ContractEmail, SendEmailReport)
	local.MustRegisterTyped(eng, ContractStore, StoreResults)
	local.MustRegisterTyped(eng, ContractTrain, TrainModel)
	local.MustRegisterTyped(eng, ContractValidate, ValidateModel)
	local.MustRegisterTyped(eng, ContractAudit, AuditLog)
}

func stableHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
