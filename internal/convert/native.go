// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// pageSource abstracts a parsed PDF so page assembly can be tested without
// a real document.
type pageSource interface {
	NumPage() int
	PageText(i int) (string, error)
}

// pdfSource adapts a ledongthuc/pdf reader to pageSource.
type pdfSource struct {
	r *pdf.Reader
}

func (s pdfSource) NumPage() int { return s.r.NumPage() }

func (s pdfSource) PageText(i int) (string, error) {
	p := s.r.Page(i)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// NativeExtractor reads the PDF text layer in process.
type NativeExtractor struct {
	maxBytes int64
}

// NewNativeExtractor creates an extractor that rejects inputs larger than
// maxBytes. Zero disables the limit.
func NewNativeExtractor(maxBytes int64) *NativeExtractor {
	return &NativeExtractor{maxBytes: maxBytes}
}

// Extract parses the PDF in r and returns its text with page offsets.
func (n *NativeExtractor) Extract(ctx context.Context, r io.Reader) (types.ExtractedText, error) {
	data, err := readAll(r, n.maxBytes)
	if err != nil {
		return types.ExtractedText{}, err
	}
	src, err := openPDF(data)
	if err != nil {
		return types.ExtractedText{}, err
	}
	return extractPages(ctx, src)
}

// openPDF parses data. The pdf package panics on some malformed inputs, so
// the panic is turned into an ExtractionError.
func openPDF(data []byte) (src pageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src = nil
			err = &types.ExtractionError{Reason: "not a parseable PDF", Err: fmt.Errorf("%v", r)}
		}
	}()
	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &types.ExtractionError{Reason: "not a parseable PDF", Err: err}
	}
	return pdfSource{r: rd}, nil
}

// extractPages walks every page of src in order.
func extractPages(ctx context.Context, src pageSource) (out types.ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = types.ExtractedText{}
			err = &types.ExtractionError{Reason: "corrupt page content", Err: fmt.Errorf("%v", r)}
		}
	}()

	n := src.NumPage()
	if n == 0 {
		return types.ExtractedText{}, &types.ExtractionError{Reason: "document has no pages"}
	}
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return types.ExtractedText{}, err
		}
		text, err := src.PageText(i)
		if err != nil {
			return types.ExtractedText{}, &types.ExtractionError{Reason: fmt.Sprintf("reading page %d", i), Err: err}
		}
		pages = append(pages, text)
	}
	return assemble(pages)
}
