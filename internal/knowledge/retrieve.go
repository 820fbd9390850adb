// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// Filter restricts a similarity query by chunk metadata. Zero fields do not
// filter.
type Filter struct {
	// DocumentID keeps only chunks of this document.
	DocumentID string

	// ExcludeDocumentID drops chunks of this document.
	ExcludeDocumentID string

	// Kind keeps only chunks of documents with this kind.
	Kind types.DocumentKind
}

type candidate struct {
	chunk types.Chunk
	sim   float64
}

// Query returns the k chunks most similar to vector by cosine similarity.
// Equal similarities are ordered by insertion sequence. Scores are clamped
// to [0,1]. Chunks whose stored dimensionality differs from vector are
// ignored. k <= 0 or an empty vector is an InvalidQueryError.
func (s *Store) Query(ctx context.Context, vector []float32, k int, f Filter) ([]types.SearchResult, error) {
	if k <= 0 {
		return nil, &types.InvalidQueryError{Reason: "k must be positive"}
	}
	if len(vector) == 0 {
		return nil, &types.InvalidQueryError{Reason: "query vector must not be empty"}
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT ` + chunkColumns + ` FROM chunks WHERE dims = ?`)
	args = append(args, len(vector))

	if f.DocumentID != "" {
		qb.WriteString(` AND document_id = ?`)
		args = append(args, f.DocumentID)
	}
	if f.ExcludeDocumentID != "" {
		qb.WriteString(` AND document_id != ?`)
		args = append(args, f.ExcludeDocumentID)
	}
	if f.Kind != "" {
		qb.WriteString(` AND kind = ?`)
		args = append(args, string(f.Kind))
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, indexFault("query", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, indexFault("query", err)
		}
		cands = append(cands, candidate{chunk: c, sim: embed.Cosine(vector, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, indexFault("query", err)
	}

	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.sim, a.sim); c != 0 {
			return c
		}
		return cmp.Compare(a.chunk.Seq, b.chunk.Seq)
	})
	if len(cands) > k {
		cands = cands[:k]
	}

	results := make([]types.SearchResult, len(cands))
	for i, c := range cands {
		results[i] = types.SearchResult{
			Chunk: c.chunk,
			Score: clamp01(c.sim),
			Rank:  i + 1,
		}
	}
	return results, nil
}

func clamp01(x float64) float64 {
	return max(0, min(1, x))
}
