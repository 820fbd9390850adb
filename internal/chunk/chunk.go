// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk splits extracted document text into overlapping, bounded
// spans. Boundaries prefer paragraph and sentence breaks found in a window
// just before the size limit and fall back to a hard cut. The same input
// always produces the same spans.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// separators in order of preference. The cut is placed after the separator.
var separators = []string{"\n\n", ". ", "\n", " "}

// Options controls chunk size, overlap and the break search window, all in
// bytes.
type Options struct {
	MaxSize   int
	Overlap   int
	Tolerance int
}

// OptionsFrom converts the configured chunking parameters.
func OptionsFrom(cfg types.ChunkingConfig) Options {
	return Options{MaxSize: cfg.MaxChunkSize, Overlap: cfg.Overlap, Tolerance: cfg.Tolerance}
}

func (o Options) validate() error {
	if o.MaxSize <= 0 {
		return &types.InvalidQueryError{Reason: fmt.Sprintf("chunk size must be positive, got %d", o.MaxSize)}
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxSize {
		return &types.InvalidQueryError{Reason: fmt.Sprintf("overlap must be in [0, %d), got %d", o.MaxSize, o.Overlap)}
	}
	if o.Tolerance < 0 {
		return &types.InvalidQueryError{Reason: fmt.Sprintf("tolerance must not be negative, got %d", o.Tolerance)}
	}
	return nil
}

// Span is a chunk candidate: the byte range [Start, End) of the source text
// and the text it covers.
type Span struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split divides text into ordered spans of at most opts.MaxSize bytes where
// consecutive spans share opts.Overlap bytes. Text no longer than MaxSize
// yields exactly one span; empty text yields none.
func Split(text string, opts Options) ([]Span, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var spans []Span
	start := 0
	for {
		end := len(text)
		if end-start > opts.MaxSize {
			end = cutPoint(text, start, opts)
		}
		spans = append(spans, Span{Index: len(spans), Start: start, End: end, Text: text[start:end]})
		if end == len(text) {
			return spans, nil
		}

		next := end - opts.Overlap
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
}

// cutPoint returns the end of the span starting at start. It searches the
// window [lo, hard) for the most preferred separator, where hard is the size
// limit and lo keeps the next span's start strictly ahead of this one.
func cutPoint(text string, start int, opts Options) int {
	hard := start + opts.MaxSize
	for hard > start && !utf8.RuneStart(text[hard]) {
		hard--
	}
	if hard == start {
		// A single rune wider than MaxSize; take it whole.
		_, size := utf8.DecodeRuneInString(text[start:])
		return start + size
	}

	lo := max(start+opts.Overlap+1, start+opts.MaxSize-opts.Tolerance)
	if lo < hard {
		window := text[lo:hard]
		for _, sep := range separators {
			if i := strings.LastIndex(window, sep); i >= 0 {
				return lo + i + len(sep)
			}
		}
	}
	return hard
}

// Reassemble rebuilds the covered text from spans by dropping each span's
// overlap with its predecessor.
func Reassemble(spans []Span) string {
	var b strings.Builder
	prevEnd := -1
	for _, s := range spans {
		skip := 0
		if prevEnd > s.Start {
			skip = prevEnd - s.Start
		}
		if skip < len(s.Text) {
			b.WriteString(s.Text[skip:])
		}
		prevEnd = s.End
	}
	return b.String()
}

// PageAt returns the page containing byte offset. Offsets that fall in the
// separator after a page belong to that page. It returns 0 when pages is
// empty.
func PageAt(offset int, pages []types.PageSpan) int {
	page := 0
	for _, p := range pages {
		if p.Start > offset {
			break
		}
		page = p.Page
	}
	if page == 0 && len(pages) > 0 {
		page = pages[0].Page
	}
	return page
}
