// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve finds precedent chunks for a classified document. It
// issues several targeted queries built from the document's summary and
// issues, merges the candidates by best score per chunk, and ranks them.
package retrieve

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/internal/knowledge"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// Index is the similarity query surface of the embedding index.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, f knowledge.Filter) ([]types.SearchResult, error)
}

// Coordinator retrieves and ranks precedents.
type Coordinator struct {
	index    Index
	embedder embed.Embedder
	cfg      types.RetrievalConfig
}

// New creates a coordinator. Zero Oversample and MaxQueries fall back to 1.
func New(index Index, embedder embed.Embedder, cfg types.RetrievalConfig) *Coordinator {
	cfg.Oversample = max(cfg.Oversample, 1)
	cfg.MaxQueries = max(cfg.MaxQueries, 1)
	return &Coordinator{index: index, embedder: embedder, cfg: cfg}
}

// Queries returns the query texts for doc: the summary first, then each
// issue, without repeats and capped at MaxQueries. Raw document text is
// never used.
func (c *Coordinator) Queries(doc types.Document) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] || len(out) >= c.cfg.MaxQueries {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	add(doc.Summary)
	for _, issue := range doc.Issues {
		add(issue)
	}
	return out
}

// Retrieve returns at most maxResults precedent chunks for doc, best first.
// Chunks of doc itself are never returned. A document with neither summary
// nor issues yields no precedents.
func (c *Coordinator) Retrieve(ctx context.Context, doc types.Document, maxResults int) ([]types.SearchResult, error) {
	if maxResults <= 0 {
		return nil, &types.InvalidQueryError{Reason: "max results must be positive"}
	}
	if doc.ID == "" {
		return nil, &types.InvalidQueryError{Reason: "document id is required"}
	}

	queries := c.Queries(doc)
	if len(queries) == 0 {
		return []types.SearchResult{}, nil
	}

	vectors, err := c.embedder.Embed(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embedding retrieval queries: %w", err)
	}

	filter := knowledge.Filter{ExcludeDocumentID: doc.ID}
	if c.cfg.SameKindOnly {
		filter.Kind = doc.Kind
	}
	k := maxResults * c.cfg.Oversample

	best := make(map[string]types.SearchResult)
	for _, v := range vectors {
		results, err := c.index.Query(ctx, v, k, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r.Chunk.DocumentID == doc.ID {
				continue
			}
			if prev, ok := best[r.Chunk.ID]; !ok || r.Score > prev.Score {
				best[r.Chunk.ID] = r
			}
		}
	}

	return Rank(best, maxResults, c.cfg.MinScore), nil
}

// Rank orders merged candidates by score, breaking ties by insertion
// sequence then chunk id, drops those below minScore, keeps the first n and
// assigns 1-based ranks.
func Rank(candidates map[string]types.SearchResult, n int, minScore float64) []types.SearchResult {
	out := make([]types.SearchResult, 0, len(candidates))
	for _, r := range candidates {
		if r.Score < minScore {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b types.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Chunk.Seq, b.Chunk.Seq); c != 0 {
			return c
		}
		return strings.Compare(a.Chunk.ID, b.Chunk.ID)
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
