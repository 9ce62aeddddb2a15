package pipeline

import (
	"fmt"

	"github.com/xraph/conduit/contract"
)

// ETLInput starts the data-processing pipeline.
type ETLInput struct {
	// DatasetID names the dataset to process.
	DatasetID string
}

// Validate checks the input before submission.
func (in ETLInput) Validate() error {
	if in.DatasetID == "" {
		return fmt.Errorf("etl input: dataset_id is required")
	}
	return nil
}

// Payload converts the input for the engine boundary.
func (in ETLInput) Payload() contract.Payload {
	return contract.Payload{"dataset_id": in.DatasetID}
}

// AnalyticsInput starts the analytics pipeline. An empty EmailRecipient
// skips the email stage entirely.
type AnalyticsInput struct {
	DatasetID string

	// Window is the analysis window, e.g. "7d".
	Window string

	// EmailRecipient, when set, requests a best-effort emailed copy of
	// the report.
	EmailRecipient string
}

// Validate checks the input before submission.
func (in AnalyticsInput) Validate() error {
	if in.DatasetID == "" {
		return fmt.Errorf("analytics input: dataset_id is required")
	}
	if in.Window == "" {
		return fmt.Errorf("analytics input: window is required")
	}
	return nil
}

// Payload converts the input for the engine boundary.
func (in AnalyticsInput) Payload() contract.Payload {
	return contract.Payload{
		"dataset_id": in.DatasetID,
		"window":     in.Window,
		"recipient":  in.EmailRecipient,
	}
}

// MLInput starts the ml-pipeline.
type MLInput struct {
	DatasetID string

	// Epochs is the training epoch count; defaults to 10 when zero.
	Epochs int
}

// Validate checks the input before submission.
func (in MLInput) Validate() error {
	if in.DatasetID == "" {
		return fmt.Errorf("ml input: dataset_id is required")
	}
	if in.Epochs < 0 {
		return fmt.Errorf("ml input: epochs must not be negative")
	}
	return nil
}

// Payload converts the input for the engine boundary.
func (in MLInput) Payload() contract.Payload {
	epochs := in.Epochs
	if epochs == 0 {
		epochs = 10
	}
	return contract.Payload{
		"dataset_id": in.DatasetID,
		"epochs":     epochs,
	}
}
