// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package model defines the generative capability the classifier and the
// response pipeline depend on, and its provider backends: an offline
// heuristic backend, the Claude Messages API, and OpenAI chat completions.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// Capability is the synchronous request/response surface of a model
// provider. Implementations must be safe for concurrent use.
type Capability interface {
	// Classify returns the model's raw verdict on a document's text. The kind
	// is a free-form label; callers normalise it.
	Classify(ctx context.Context, text string) (Classification, error)

	// Draft writes a response conditioned on a case brief, precedents and
	// tone.
	Draft(ctx context.Context, req DraftRequest) (string, error)

	// Score assesses a draft against the brief it answers.
	Score(ctx context.Context, req ScoreRequest) (Assessment, error)
}

// Classification is the unnormalised classifier output as a model returns it.
type Classification struct {
	Kind    string   `json:"kind"`
	Parties []string `json:"parties"`
	Issues  []string `json:"issues"`
	Dates   []string `json:"dates"`
	Summary string   `json:"summary"`
}

// Brief is the normalised case brief produced by the analysis stage.
type Brief struct {
	DocumentID string
	Filename   string
	Kind       types.DocumentKind
	Summary    string
	Parties    []string

	// Issues are ranked, most important first.
	Issues []string
	Dates  []string

	// Excerpt is the opening of the document text.
	Excerpt string
}

// Precedent is a retrieved chunk as presented to the drafting stage.
type Precedent struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Kind       types.DocumentKind
	Text       string
	Score      float64
	Rationale  string
}

// DraftRequest is the input of the drafting stage.
type DraftRequest struct {
	Brief      Brief
	Precedents []Precedent
	Tone       types.ResponseType
}

// ScoreRequest is the input of the scoring stage.
type ScoreRequest struct {
	Brief      Brief
	Precedents []Precedent
	Tone       types.ResponseType
	Draft      string
}

// Assessment is a model's self-assessment of a draft.
type Assessment struct {
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	KeyPoints  []string `json:"key_points"`
}

// New builds the capability selected by cfg.Provider, wrapped in a rate
// limiter when cfg.RequestsPerMinute is set.
func New(cfg types.AIConfig) (Capability, error) {
	var (
		c   Capability
		err error
	)
	switch cfg.Provider {
	case types.ProviderHeuristic, "":
		c = NewHeuristicBackend()
	case types.ProviderClaude:
		c, err = NewClaudeBackend(cfg)
	case types.ProviderOpenAI:
		c, err = NewOpenAIBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute > 0 {
		c = NewLimited(c, cfg.RequestsPerMinute)
	}
	return c, nil
}

// decodeJSON parses the first JSON object in text into v, tolerating code
// fences and prose around it.
func decodeJSON(text string, v any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return errors.New("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("parsing model JSON: %w", err)
	}
	return nil
}

// parseAssessment reads a scoring reply. JSON is preferred; the labelled
// CONFIDENCE/REASONING/KEY_POINTS format is accepted as well.
func parseAssessment(text string) (Assessment, error) {
	var a Assessment
	if err := decodeJSON(text, &a); err == nil {
		return a, nil
	}

	ci := strings.Index(text, "CONFIDENCE:")
	if ci < 0 {
		return Assessment{}, errors.New("scoring reply has neither JSON nor a CONFIDENCE line")
	}
	rest := text[ci+len("CONFIDENCE:"):]
	confText, rest, _ := strings.Cut(rest, "REASONING:")
	if _, err := fmt.Sscanf(strings.TrimSpace(confText), "%g", &a.Confidence); err != nil {
		return Assessment{}, fmt.Errorf("parsing confidence %q: %w", strings.TrimSpace(confText), err)
	}
	reasoning, points, _ := strings.Cut(rest, "KEY_POINTS:")
	a.Reasoning = strings.TrimSpace(reasoning)
	for _, p := range strings.Split(points, ",") {
		if p = strings.Trim(strings.TrimSpace(p), "[]"); p != "" {
			a.KeyPoints = append(a.KeyPoints, p)
		}
	}
	return a, nil
}
