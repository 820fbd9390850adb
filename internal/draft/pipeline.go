// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package draft runs the response generation pipeline. A Run is a tagged
// state value that moves strictly forward through Analyzing, Integrating,
// Drafting and Scoring to Done; each stage reads only the structured output
// of the stage before it. A failed stage leaves the Run where it was and is
// reported as a *types.PipelineStageError.
package draft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// Retriever finds precedents for a classified document.
type Retriever interface {
	Retrieve(ctx context.Context, doc types.Document, maxResults int) ([]types.SearchResult, error)
}

// Run is one generation in progress. Stage names the next stage to execute;
// fields are filled in as stages complete.
type Run struct {
	Stage      types.Stage
	Document   types.Document
	Tone       types.ResponseType
	Brief      model.Brief
	Results    []types.SearchResult
	Precedents []model.Precedent
	Draft      string
	Assessment model.Assessment
	Confidence float64
}

// Done reports whether every stage has completed.
func (r *Run) Done() bool { return r.Stage == types.StageDone }

// Pipeline holds the collaborators the stages call.
type Pipeline struct {
	model      model.Capability
	retriever  Retriever
	maxResults int
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the time source for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDs sets the response id generator.
func WithIDs(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// New creates a pipeline attaching at most maxResults precedents.
func New(m model.Capability, r Retriever, maxResults int, opts ...Option) *Pipeline {
	p := &Pipeline{
		model:      m,
		retriever:  r,
		maxResults: maxResults,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start validates the request and returns a Run positioned at Analyzing.
// An unclassified document is rejected with types.ErrNotClassified.
func (p *Pipeline) Start(doc types.Document, tone types.ResponseType) (*Run, error) {
	if !doc.IsClassified() {
		return nil, fmt.Errorf("document %s: %w", doc.ID, types.ErrNotClassified)
	}
	if _, err := types.ParseResponseType(string(tone)); err != nil {
		return nil, err
	}
	if p.maxResults <= 0 {
		return nil, &types.InvalidQueryError{Reason: "max results must be positive"}
	}
	return &Run{Stage: types.StageAnalyzing, Document: doc, Tone: tone}, nil
}

type transition struct {
	next types.Stage
	run  func(p *Pipeline, ctx context.Context, r *Run) error
}

var transitions = map[types.Stage]transition{
	types.StageAnalyzing:   {types.StageIntegrating, (*Pipeline).analyze},
	types.StageIntegrating: {types.StageDrafting, (*Pipeline).integrate},
	types.StageDrafting:    {types.StageScoring, (*Pipeline).draft},
	types.StageScoring:     {types.StageDone, (*Pipeline).score},
}

// Advance executes the Run's current stage and moves it to the next one.
// On failure the Run keeps its stage and the error names it. Advancing a
// finished Run is an InvalidQueryError.
func (p *Pipeline) Advance(ctx context.Context, r *Run) error {
	t, ok := transitions[r.Stage]
	if !ok {
		return &types.InvalidQueryError{Reason: fmt.Sprintf("cannot advance a run in stage %q", r.Stage)}
	}
	if err := ctx.Err(); err != nil {
		return &types.PipelineStageError{Stage: r.Stage, Err: err}
	}

	start := time.Now()
	if err := t.run(p, ctx, r); err != nil {
		p.logger.Warn("generation stage failed", "document", r.Document.ID, "stage", r.Stage, "error", err)
		return &types.PipelineStageError{Stage: r.Stage, Err: err}
	}
	p.logger.Debug("generation stage complete", "document", r.Document.ID, "stage", r.Stage,
		"elapsed", time.Since(start))
	r.Stage = t.next
	return nil
}

// Generate runs every stage for doc and returns the finished response. It
// does not persist anything.
func (p *Pipeline) Generate(ctx context.Context, doc types.Document, tone types.ResponseType) (types.Response, error) {
	r, err := p.Start(doc, tone)
	if err != nil {
		return types.Response{}, err
	}
	for !r.Done() {
		if err := p.Advance(ctx, r); err != nil {
			return types.Response{}, err
		}
	}
	return p.Response(r)
}

// Response assembles the response of a finished Run.
func (p *Pipeline) Response(r *Run) (types.Response, error) {
	if !r.Done() {
		return types.Response{}, &types.InvalidQueryError{Reason: fmt.Sprintf("run is in stage %q, not done", r.Stage)}
	}

	resp := types.Response{
		ID:           p.newID(),
		DocumentID:   r.Document.ID,
		Type:         r.Tone,
		Text:         r.Draft,
		Confidence:   r.Confidence,
		PrecedentIDs: make([]string, 0, len(r.Precedents)),
		Precedents:   make([]types.Precedent, 0, len(r.Precedents)),
		Reasoning:    strings.TrimSpace(r.Assessment.Reasoning),
		KeyPoints:    nonEmpty(r.Assessment.KeyPoints),
		CreatedAt:    p.now().UTC(),
	}
	for _, pr := range r.Precedents {
		resp.PrecedentIDs = append(resp.PrecedentIDs, pr.ChunkID)
		resp.Precedents = append(resp.Precedents, types.Precedent{
			ChunkID:    pr.ChunkID,
			DocumentID: pr.DocumentID,
			Score:      pr.Score,
			Rationale:  pr.Rationale,
		})
	}
	return resp, nil
}

func (p *Pipeline) analyze(_ context.Context, r *Run) error {
	r.Brief = Analyze(r.Document)
	return nil
}

func (p *Pipeline) integrate(ctx context.Context, r *Run) error {
	results, err := p.retriever.Retrieve(ctx, r.Document, p.maxResults)
	if err != nil {
		return fmt.Errorf("retrieving precedents: %w", err)
	}
	if len(results) > p.maxResults {
		results = results[:p.maxResults]
	}
	r.Results = results
	r.Precedents = Integrate(r.Brief, results)
	return nil
}

func (p *Pipeline) draft(ctx context.Context, r *Run) error {
	text, err := p.model.Draft(ctx, model.DraftRequest{
		Brief:      r.Brief,
		Precedents: r.Precedents,
		Tone:       r.Tone,
	})
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("model returned an empty draft")
	}
	r.Draft = text
	return nil
}

func (p *Pipeline) score(ctx context.Context, r *Run) error {
	a, err := p.model.Score(ctx, model.ScoreRequest{
		Brief:      r.Brief,
		Precedents: r.Precedents,
		Tone:       r.Tone,
		Draft:      r.Draft,
	})
	if err != nil {
		return err
	}
	r.Assessment = a

	relevance := make([]float64, len(r.Precedents))
	for i, pr := range r.Precedents {
		relevance[i] = pr.Score
	}
	r.Confidence = Confidence(relevance, a.Confidence, r.Brief)
	return nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
