// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// BatchStatus is the outcome of one item of a batch run.
type BatchStatus string

const (
	BatchProcessed BatchStatus = "processed"

	// BatchSkipped marks a file whose bytes were already indexed.
	BatchSkipped BatchStatus = "skipped"
	BatchFailed  BatchStatus = "failed"
)

// BatchItem reports what happened to one input of a batch.
type BatchItem struct {
	Source     string       `json:"source" yaml:"source"`
	DocumentID string       `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Kind       DocumentKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Status     BatchStatus  `json:"status" yaml:"status"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`

	// Err is the failure cause, kept for errors.As by callers.
	Err error `json:"-" yaml:"-"`
}

// BatchSummary holds the per-item statuses and counts of a batch run. Items
// are in input order.
type BatchSummary struct {
	Items     []BatchItem `json:"items" yaml:"items"`
	Processed int         `json:"processed" yaml:"processed"`
	Skipped   int         `json:"skipped" yaml:"skipped"`
	Failed    int         `json:"failed" yaml:"failed"`
}

// Total returns the number of items in the batch.
func (s BatchSummary) Total() int {
	return s.Processed + s.Skipped + s.Failed
}

// HasFailures reports whether any item failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}
