// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch processes PDFs dropped into an inbox directory. Files already
// present when the watcher starts are processed first; new or rewritten
// files are processed once they have been quiet for the debounce interval.
package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/legal-responder/pkg/types"
)

const defaultDebounce = 500 * time.Millisecond

// Processor ingests one PDF file.
type Processor interface {
	ProcessFile(ctx context.Context, path string) (types.Document, error)
}

// ResultFunc receives the outcome of every processed file.
type ResultFunc func(path string, doc types.Document, err error)

// Watcher feeds an inbox directory to a Processor.
type Watcher struct {
	dir      string
	proc     Processor
	debounce time.Duration
	onResult ResultFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be unchanged before it is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithResults registers a callback for processed files.
func WithResults(fn ResultFunc) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher for dir.
func New(dir string, proc Processor, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		proc:     proc,
		debounce: defaultDebounce,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:  make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches the directory until ctx is cancelled. Processing failures are
// reported and logged but never stop the watcher; Run returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox %s: %w", w.dir, err)
	}
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox", "dir", w.dir)

	ready := make(chan string, 64)
	defer w.stopTimers()

	existing, err := w.existing()
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.process(ctx, path)
		if ctx.Err() != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isPDF(ev.Name) || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			w.schedule(ctx, ev.Name, ready)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case path := <-ready:
			w.process(ctx, path)
		}
	}
}

// schedule (re)starts the quiet timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}
	doc, err := w.proc.ProcessFile(ctx, path)
	if err != nil {
		w.logger.Error("processing failed", "path", path, "error", err)
	} else {
		w.logger.Info("processed", "path", path, "document_id", doc.ID, "kind", doc.Kind)
	}
	if w.onResult != nil {
		w.onResult(path, doc, err)
	}
}

func (w *Watcher) existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("reading inbox %s: %w", w.dir, err)
	}
	var paths []string
	for _, ent := range entries {
		if !ent.IsDir() && isPDF(ent.Name()) {
			paths = append(paths, filepath.Join(w.dir, ent.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
