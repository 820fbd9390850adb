// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts the text layer from PDF documents with pluggable
// backends. Each backend yields per-page text; assemble joins the pages into
// one string and records where every page begins and ends.
package convert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/legal-responder/internal/container"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// pageSeparator joins consecutive pages. A blank line lets the chunker treat
// a page break as a paragraph break.
const pageSeparator = "\n\n"

// Extractor pulls raw text out of a PDF byte stream. Implementations return
// *types.ExtractionError when the stream is not a parseable PDF or carries
// no text layer; they never return empty text without an error.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (types.ExtractedText, error)
}

// New returns the extractor selected by cfg.Backend. The pdftotext backend
// needs a working container runtime.
func New(cfg types.ExtractionConfig) (Extractor, error) {
	switch cfg.Backend {
	case types.ExtractNative, "":
		return NewNativeExtractor(cfg.MaxBytes), nil
	case types.ExtractPdftotext:
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, err
		}
		return NewPdftotextExtractor(rt, cfg.Image, cfg.MaxBytes)
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Backend)
	}
}

// readAll reads the whole stream, enforcing maxBytes when positive.
func readAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &types.ExtractionError{Reason: "reading input", Err: err}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, &types.ExtractionError{Reason: fmt.Sprintf("document exceeds %d bytes", maxBytes)}
	}
	if len(data) == 0 {
		return nil, &types.ExtractionError{Reason: "empty input"}
	}
	return data, nil
}

// assemble joins page texts in order and records each page's byte range.
// Line endings are normalised to \n and trailing whitespace on each page is
// dropped. A document whose pages are all blank has no text layer.
func assemble(pages []string) (types.ExtractedText, error) {
	var (
		b     strings.Builder
		spans = make([]types.PageSpan, 0, len(pages))
	)
	for i, p := range pages {
		p = strings.ReplaceAll(p, "\r\n", "\n")
		p = strings.TrimRight(p, " \t\n\r\f")
		if i > 0 {
			b.WriteString(pageSeparator)
		}
		start := b.Len()
		b.WriteString(p)
		spans = append(spans, types.PageSpan{Page: i + 1, Start: start, End: b.Len()})
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return types.ExtractedText{}, &types.ExtractionError{Reason: "no extractable text layer (scanned image only?)"}
	}
	return types.ExtractedText{Text: text, Pages: spans}, nil
}
