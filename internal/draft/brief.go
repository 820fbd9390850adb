// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/pkg/types"
)

const (
	excerptLen     = 1500
	precedentLen   = 600
	rationaleTerms = 4
	severityWeight = 2
	amountWeight   = 1
	partyWeight    = 1
	dateWeight     = 1
)

// severityStems mark an issue as weighty: liability, termination, court.
var severityStems = []string{
	"breach", "terminat", "damage", "liab", "default", "penalt", "infring",
	"neglig", "violat", "court", "litigat", "injunct", "fraud", "urgent", "immediate",
}

// Analyze restates a classified document as a case brief with its issues
// ranked by apparent importance.
func Analyze(doc types.Document) model.Brief {
	return model.Brief{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Kind:       doc.Kind,
		Summary:    doc.Summary,
		Parties:    slices.Clone(doc.Parties),
		Issues:     RankIssues(doc.Issues, doc.Parties, doc.Dates),
		Dates:      slices.Clone(doc.Dates),
		Excerpt:    excerpt(doc.Text, excerptLen),
	}
}

// RankIssues orders issues by importance. An issue gains weight for
// severity terms, monetary amounts, named parties and dates; equal weights
// keep document order.
func RankIssues(issues, parties, dates []string) []string {
	type scored struct {
		text  string
		score int
	}
	ranked := make([]scored, len(issues))
	for i, is := range issues {
		ranked[i] = scored{is, issueWeight(is, parties, dates)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.text
	}
	return out
}

func issueWeight(issue string, parties, dates []string) int {
	w := 0
	for _, tok := range embed.Tokenize(issue) {
		for _, stem := range severityStems {
			if strings.HasPrefix(tok, stem) {
				w += severityWeight
				break
			}
		}
	}
	if strings.ContainsAny(issue, "$£€") {
		w += amountWeight
	}
	lower := strings.ToLower(issue)
	for _, p := range parties {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			w += partyWeight
			break
		}
	}
	for _, d := range dates {
		if d != "" && strings.Contains(issue, d) {
			w += dateWeight
			break
		}
	}
	return w
}

// Integrate converts retrieval results into precedents, each with a one-line
// rationale naming the terms it shares with the brief.
func Integrate(b model.Brief, results []types.SearchResult) []model.Precedent {
	briefTerms := briefVocabulary(b)
	out := make([]model.Precedent, 0, len(results))
	for _, r := range results {
		out = append(out, model.Precedent{
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Filename:   r.Chunk.Metadata.Filename,
			Kind:       r.Chunk.Metadata.DocumentKind,
			Text:       excerpt(r.Chunk.Text, precedentLen),
			Score:      r.Score,
			Rationale:  rationale(briefTerms, r),
		})
	}
	return out
}

// briefVocabulary lists the brief's content words, issues first, in order of
// first appearance.
func briefVocabulary(b model.Brief) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, s := range append(slices.Clone(b.Issues), b.Summary) {
		for _, tok := range embed.Tokenize(s) {
			if !seen[tok] {
				seen[tok] = true
				terms = append(terms, tok)
			}
		}
	}
	return terms
}

func rationale(briefTerms []string, r types.SearchResult) string {
	chunkWords := make(map[string]bool)
	for _, tok := range embed.Tokenize(r.Chunk.Text) {
		chunkWords[tok] = true
	}
	var shared []string
	for _, t := range briefTerms {
		if chunkWords[t] {
			shared = append(shared, t)
			if len(shared) == rationaleTerms {
				break
			}
		}
	}

	kind := r.Chunk.Metadata.DocumentKind
	if kind == "" {
		kind = types.KindUnknown
	}
	if len(shared) == 0 {
		return fmt.Sprintf("Similar %s passage (relevance %.2f).", kind, r.Score)
	}
	return fmt.Sprintf("Shares %s with the brief in a prior %s (relevance %.2f).",
		strings.Join(shared, ", "), kind, r.Score)
}

// excerpt returns at most n bytes of s, cut on a rune boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
