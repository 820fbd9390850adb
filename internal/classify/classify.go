// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify turns a model's verdict on a document into a
// types.Classification whose kind is always from the closed set and whose
// field lists are never nil.
package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// Classifier classifies document text through a model capability.
type Classifier struct {
	model         model.Capability
	maxInputChars int
	maxRetries    int
	logger        *slog.Logger
}

// New creates a classifier. maxRetries is the number of retries after the
// first failed model call. A nil logger discards output.
func New(m model.Capability, cfg types.ClassifierConfig, maxRetries int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{
		model:         m,
		maxInputChars: cfg.MaxInputChars,
		maxRetries:    max(maxRetries, 0),
		logger:        logger,
	}
}

// Classify returns the kind and structured fields of text. Model failures,
// after retries, are reported as *types.ClassificationError.
func (c *Classifier) Classify(ctx context.Context, text string) (types.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return types.Classification{}, &types.InvalidQueryError{Reason: "cannot classify empty text"}
	}

	input := truncate(text, c.maxInputChars)
	raw, err := callWithRetry(ctx, c.model, input, c.maxRetries, c.logger)
	if err != nil {
		return types.Classification{}, &types.ClassificationError{Err: err}
	}

	out := Normalize(raw)
	c.logger.Debug("classified document", "kind", out.Kind, "raw_kind", raw.Kind,
		"parties", len(out.Parties), "issues", len(out.Issues))
	return out, nil
}

// Normalize maps a raw model verdict onto the closed kind set and cleans the
// field lists.
func Normalize(raw model.Classification) types.Classification {
	return types.Classification{
		Kind:    types.ParseDocumentKind(raw.Kind),
		Parties: cleanList(raw.Parties),
		Issues:  cleanList(raw.Issues),
		Dates:   cleanList(raw.Dates),
		Summary: strings.Join(strings.Fields(raw.Summary), " "),
	}
}

// cleanList collapses whitespace, drops empty entries and case-insensitive
// repeats, and keeps first-appearance order. The result is never nil.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// truncate cuts text to at most n bytes on a rune boundary. n <= 0 keeps
// the whole text.
func truncate(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the model with exponential backoff.
func callWithRetry(ctx context.Context, m model.Capability, text string, maxRetries int, logger *slog.Logger) (model.Classification, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			logger.Warn("classification failed, retrying", "attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return model.Classification{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := m.Classify(ctx, text)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return model.Classification{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
