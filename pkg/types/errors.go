// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested document or response does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotClassified is returned when generation is requested for a
	// document that has no classification.
	ErrNotClassified = errors.New("document is not classified")
)

// ExtractionError reports an unreadable PDF or one without a text layer.
// The caller must supply a different file; retrying does not help.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ClassificationError reports a model or service failure during
// classification. Classification is idempotent and safe to retry.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// InvalidQueryError reports a programming error in the caller's request.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

// Stage names a step of the response generation pipeline.
type Stage string

const (
	StageAnalyzing   Stage = "analyzing"
	StageIntegrating Stage = "integrating"
	StageDrafting    Stage = "drafting"
	StageScoring     Stage = "scoring"
	StageDone        Stage = "done"
)

// PipelineStageError reports which generation stage failed and why. The
// whole generation may be retried from scratch.
type PipelineStageError struct {
	Stage Stage
	Err   error
}

func (e *PipelineStageError) Error() string {
	return fmt.Sprintf("generation failed in stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineStageError) Unwrap() error { return e.Err }

// IndexUnavailableError reports a storage fault in the embedding index.
// It is fatal for the current operation.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index unavailable during %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// Retryable reports whether the operation that produced err may be retried
// unchanged. Classification and generation failures are retryable; extraction,
// invalid queries and storage faults are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var (
		extractErr *ExtractionError
		queryErr   *InvalidQueryError
		indexErr   *IndexUnavailableError
		classErr   *ClassificationError
		stageErr   *PipelineStageError
	)
	switch {
	case errors.As(err, &extractErr), errors.As(err, &queryErr), errors.As(err, &indexErr):
		return false
	case errors.As(err, &classErr), errors.As(err, &stageErr):
		return true
	}
	return false
}
