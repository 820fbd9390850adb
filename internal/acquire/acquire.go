// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads PDFs given by http(s) URL so they can be
// processed like local files.
package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pdiddy/legal-responder/internal/httputil"
	"github.com/pdiddy/legal-responder/pkg/types"
)

const defaultName = "download.pdf"

// Download is a fetched PDF.
type Download struct {
	// Name is the file name taken from the URL path.
	Name string
	URL  string
	Data []byte
}

// Fetcher downloads PDFs over HTTP.
type Fetcher struct {
	client   *http.Client
	cfg      types.FetchConfig
	maxBytes int64
}

// New creates a fetcher. A nil client uses one bounded by cfg.Timeout.
// maxBytes rejects larger bodies; zero disables the check.
func New(client *http.Client, cfg types.FetchConfig, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{client: client, cfg: cfg, maxBytes: maxBytes}
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads rawURL. Overload responses (429, 503) are retried with
// backoff; any other non-200 status is an error. The body must start with
// the PDF signature.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Download, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsURL(rawURL) {
		return Download{}, fmt.Errorf("not an http(s) URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Download{}, fmt.Errorf("creating request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.cfg.MaxRetries)
	if err != nil {
		return Download{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Download{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Download{}, fmt.Errorf("reading download: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return Download{}, &types.ExtractionError{Reason: fmt.Sprintf("download exceeds %d bytes", f.maxBytes)}
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return Download{}, &types.ExtractionError{Reason: fmt.Sprintf("%s did not return a PDF", rawURL)}
	}

	return Download{Name: FileName(rawURL), URL: rawURL, Data: data}, nil
}

// FileName derives a file name from the last path segment of rawURL,
// adding a .pdf extension when it is missing.
func FileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultName
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return defaultName
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
