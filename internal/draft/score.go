// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"math"

	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// Confidence weights.
const (
	relevanceWeight    = 0.4
	assessmentWeight   = 0.4
	completenessWeight = 0.2
)

// Confidence combines the mean precedent relevance, the model's
// self-assessment and the completeness of the brief's required fields into
// a score in [0,1]. No precedents count as zero relevance.
func Confidence(relevance []float64, selfAssessment float64, b model.Brief) float64 {
	mean := 0.0
	if len(relevance) > 0 {
		for _, r := range relevance {
			mean += clamp01(r)
		}
		mean /= float64(len(relevance))
	}
	return clamp01(relevanceWeight*mean +
		assessmentWeight*clamp01(selfAssessment) +
		completenessWeight*Completeness(b))
}

// Completeness is the share of required brief fields that are present: a
// known kind, parties, issues and a summary.
func Completeness(b model.Brief) float64 {
	present := 0
	if b.Kind != "" && b.Kind != types.KindUnknown {
		present++
	}
	if len(b.Parties) > 0 {
		present++
	}
	if len(b.Issues) > 0 {
		present++
	}
	if b.Summary != "" {
		present++
	}
	return float64(present) / 4
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
