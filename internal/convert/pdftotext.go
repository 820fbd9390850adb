// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/legal-responder/internal/container"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// PdftotextExtractor extracts text by piping the PDF through a poppler
// pdftotext container. pdftotext separates pages with form feeds.
type PdftotextExtractor struct {
	runtime  container.Runtime
	image    string
	maxBytes int64
}

// NewPdftotextExtractor creates an extractor that runs image on rt. It
// verifies that the image exists locally before returning.
func NewPdftotextExtractor(rt container.Runtime, image string, maxBytes int64) (*PdftotextExtractor, error) {
	if err := rt.ImageExists(image); err != nil {
		return nil, fmt.Errorf("pdftotext image not available in %s: %w", rt.Name(), err)
	}
	return &PdftotextExtractor{runtime: rt, image: image, maxBytes: maxBytes}, nil
}

// Extract pipes r through pdftotext and splits the output into pages.
func (p *PdftotextExtractor) Extract(ctx context.Context, r io.Reader) (types.ExtractedText, error) {
	data, err := readAll(r, p.maxBytes)
	if err != nil {
		return types.ExtractedText{}, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return types.ExtractedText{}, &types.ExtractionError{Reason: "not a parseable PDF: missing %PDF header"}
	}

	var out bytes.Buffer
	args := []string{"pdftotext", "-enc", "UTF-8", "-", "-"}
	if err := p.runtime.Run(ctx, p.image, args, bytes.NewReader(data), &out); err != nil {
		if ctx.Err() != nil {
			return types.ExtractedText{}, ctx.Err()
		}
		return types.ExtractedText{}, &types.ExtractionError{Reason: "pdftotext failed", Err: err}
	}

	pages := strings.Split(out.String(), "\f")
	// pdftotext terminates the last page with a form feed too.
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return assemble(pages)
}
