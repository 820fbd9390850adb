// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/legal-responder/internal/acquire"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// ProcessBatch processes every source in paths independently, at most
// cfg.Batch.Concurrency at a time. A source is a file path or an http(s)
// URL. A failed source never stops the others; each gets a status in the
// returned summary, in input order. Progress lines
// are written to w as items finish. The error is non-nil only when ctx is
// cancelled before every item has been attempted.
func (e *Engine) ProcessBatch(ctx context.Context, paths []string, w io.Writer) (types.BatchSummary, error) {
	items := make([]types.BatchItem, len(paths))

	var mu sync.Mutex
	report := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, format, args...)
	}

	var g errgroup.Group
	g.SetLimit(max(1, e.cfg.Batch.Concurrency))

	for i, path := range paths {
		if ctx.Err() != nil {
			items[i] = failedItem(path, ctx.Err())
			continue
		}
		g.Go(func() error {
			items[i] = e.processItem(ctx, path)
			switch it := items[i]; it.Status {
			case types.BatchFailed:
				report("failed    %s: %s\n", path, it.Error)
			case types.BatchSkipped:
				report("skipped   %s (%s)\n", path, it.DocumentID)
			default:
				report("processed %s (%s, %s)\n", path, it.DocumentID, it.Kind)
			}
			return nil
		})
	}
	g.Wait()

	summary := types.BatchSummary{Items: items}
	for _, it := range items {
		switch it.Status {
		case types.BatchProcessed:
			summary.Processed++
		case types.BatchSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	fmt.Fprintf(w, "\n%d processed, %d skipped, %d failed (%d total)\n",
		summary.Processed, summary.Skipped, summary.Failed, summary.Total())

	e.logger.Info("batch finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, ctx.Err()
}

func (e *Engine) processItem(ctx context.Context, path string) types.BatchItem {
	name, data, err := e.readSource(ctx, path)
	if err != nil {
		return failedItem(path, err)
	}

	status := types.BatchProcessed
	if existing, err := e.store.GetDocument(ctx, DocumentID(data)); err == nil && existing.IsClassified() {
		status = types.BatchSkipped
	}

	doc, err := e.ProcessDocument(ctx, name, data)
	if err != nil {
		return failedItem(path, err)
	}
	return types.BatchItem{Source: path, DocumentID: doc.ID, Kind: doc.Kind, Status: status}
}

func (e *Engine) readSource(ctx context.Context, source string) (string, []byte, error) {
	if acquire.IsURL(source) {
		dl, err := e.fetcher.Fetch(ctx, source)
		if err != nil {
			return "", nil, fmt.Errorf("fetching %s: %w", source, err)
		}
		return dl.Name, dl.Data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(source), data, nil
}

func failedItem(source string, err error) types.BatchItem {
	return types.BatchItem{Source: source, Status: types.BatchFailed, Error: err.Error(), Err: err}
}

// PDFsInDir lists the .pdf files directly inside dir, sorted by name.
func PDFsInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var paths []string
	for _, ent := range entries {
		if ent.IsDir() || !IsPDF(ent.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, ent.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// IsPDF reports whether name has a .pdf extension, in any case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
