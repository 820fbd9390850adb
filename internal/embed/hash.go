// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimensions = 384

// stopwords carry no topical signal and would otherwise dominate vectors of
// legal boilerplate.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "our": true, "shall": true, "that": true, "the": true, "this": true,
	"to": true, "was": true, "we": true, "were": true, "which": true, "with": true,
	"you": true, "your": true,
}

// HashEmbedder is a deterministic, offline embedding based on signed
// feature hashing of lower-cased word unigrams and bigrams. Texts that share
// vocabulary get high cosine similarity; it has no notion of synonyms.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder with dims dimensions (384 when
// dims is not positive).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Model() string { return fmt.Sprintf("hash-%d", h.dims) }

// Embed never fails except on context cancellation.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	Normalize(v)
	return v
}

func (h *HashEmbedder) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

// Tokenize lower-cases text and splits it into words of letters and digits,
// dropping stopwords and single characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
