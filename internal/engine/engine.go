// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine wires extraction, chunking, embedding, classification,
// retrieval and response generation into the operations external callers
// use. An Engine is constructed once, shared by reference and closed on
// shutdown; it holds no package-level state.
package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/legal-responder/internal/acquire"
	"github.com/pdiddy/legal-responder/internal/chunk"
	"github.com/pdiddy/legal-responder/internal/classify"
	"github.com/pdiddy/legal-responder/internal/convert"
	"github.com/pdiddy/legal-responder/internal/draft"
	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/internal/knowledge"
	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/internal/retrieve"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// documentNamespace scopes content-derived document ids.
var documentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://meshintelligence.io/legal-responder/document"))

// DocumentID returns the id a PDF with these bytes is stored under.
func DocumentID(pdf []byte) string {
	return uuid.NewSHA1(documentNamespace, pdf).String()
}

// Processing phases named in ProcessDocument errors.
const (
	phaseExtract  = "extract"
	phaseChunk    = "chunk"
	phaseEmbed    = "embed"
	phaseClassify = "classify"
	phaseIndex    = "index"
)

// Engine is the document pipeline and response generator.
type Engine struct {
	cfg        types.Config
	store      *knowledge.Store
	extractor  convert.Extractor
	embedder   embed.Embedder
	model      model.Capability
	classifier *classify.Classifier
	retriever  *retrieve.Coordinator
	pipeline   *draft.Pipeline
	fetcher    *acquire.Fetcher
	httpClient *http.Client
	chunkOpts  chunk.Options
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Stages log through it as well.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithExtractor replaces the extractor selected by the configuration.
func WithExtractor(x convert.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithEmbedder replaces the embedder selected by the configuration.
func WithEmbedder(em embed.Embedder) Option {
	return func(e *Engine) { e.embedder = em }
}

// WithModel replaces the model capability selected by the configuration.
func WithModel(m model.Capability) Option {
	return func(e *Engine) { e.model = m }
}

// WithHTTPClient sets the client used to download PDFs given by URL.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithClock sets the time source for document and response timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates cfg, opens the store in cfg.DataDir and builds every stage.
// Collaborators not supplied through options are built from cfg.
func New(cfg types.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		chunkOpts: chunk.OptionsFrom(cfg.Chunking),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}

	var err error
	if e.extractor == nil {
		if e.extractor, err = convert.New(cfg.Extraction); err != nil {
			return nil, fmt.Errorf("creating extractor: %w", err)
		}
	}
	if e.embedder == nil {
		if e.embedder, err = embed.New(cfg.Embedding); err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}
	if e.model == nil {
		if e.model, err = model.New(cfg.AI); err != nil {
			return nil, fmt.Errorf("creating model backend: %w", err)
		}
	}

	store, err := knowledge.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	e.store = store

	e.fetcher = acquire.New(e.httpClient, cfg.Fetch, cfg.Extraction.MaxBytes)
	e.classifier = classify.New(e.model, cfg.Classifier, cfg.AI.MaxRetries, e.logger)
	e.retriever = retrieve.New(store, e.embedder, cfg.Retrieval)
	e.pipeline = draft.New(e.model, e.retriever, cfg.Retrieval.MaxResults,
		draft.WithLogger(e.logger), draft.WithClock(e.now))

	e.logger.Debug("engine ready",
		"store", store.Path(),
		"embedding_model", e.embedder.Model(),
		"dimensions", e.embedder.Dimensions())
	return e, nil
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() types.Config { return e.cfg }

func phaseError(filename, phase string, err error) error {
	return fmt.Errorf("processing %s: %s: %w", filename, phase, err)
}

// ProcessDocument extracts, chunks, embeds and classifies a PDF and stores
// the document with its chunks in one transaction. Identical bytes map to
// the same document id; when that document is already classified it is
// returned as stored without calling the model again. Errors name the phase
// that failed and leave nothing visible.
func (e *Engine) ProcessDocument(ctx context.Context, filename string, pdf []byte) (types.Document, error) {
	id := DocumentID(pdf)
	if filename == "" {
		filename = id + ".pdf"
	}
	log := e.logger.With("document_id", id, "filename", filename)

	existing, err := e.store.GetDocument(ctx, id)
	switch {
	case err == nil && existing.IsClassified():
		log.Debug("document already processed")
		return existing, nil
	case err != nil && !errors.Is(err, types.ErrNotFound):
		return types.Document{}, phaseError(filename, phaseIndex, err)
	}

	extracted, err := e.extractor.Extract(ctx, bytes.NewReader(pdf))
	if err != nil {
		return types.Document{}, phaseError(filename, phaseExtract, err)
	}

	spans, err := chunk.Split(extracted.Text, e.chunkOpts)
	if err != nil {
		return types.Document{}, phaseError(filename, phaseChunk, err)
	}

	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return types.Document{}, phaseError(filename, phaseEmbed, err)
	}
	if len(vectors) != len(spans) {
		return types.Document{}, phaseError(filename, phaseEmbed,
			fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(spans)))
	}

	verdict, err := e.classifier.Classify(ctx, extracted.Text)
	if err != nil {
		return types.Document{}, phaseError(filename, phaseClassify, err)
	}

	now := e.now().UTC()
	sum := sha256.Sum256(pdf)
	doc := types.Document{
		ID:          id,
		Filename:    filename,
		ContentHash: hex.EncodeToString(sum[:]),
		Text:        extracted.Text,
		Pages:       extracted.Pages,
		WordCount:   len(strings.Fields(extracted.Text)),
		ResponseIDs: []string{},
		CreatedAt:   now,
	}
	doc.ApplyClassification(verdict, now)

	chunks := make([]types.Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = types.Chunk{
			ID:         knowledge.ChunkID(id, s.Index),
			DocumentID: id,
			Index:      s.Index,
			Start:      s.Start,
			End:        s.End,
			Text:       s.Text,
			Embedding:  vectors[i],
			Metadata: types.ChunkMetadata{
				DocumentID:   id,
				ChunkIndex:   s.Index,
				DocumentKind: doc.Kind,
				Filename:     filename,
				Page:         chunk.PageAt(s.Start, extracted.Pages),
			},
		}
	}

	err = e.store.IndexDocument(ctx, doc, chunks)
	if errors.Is(err, knowledge.ErrAlreadyClassified) {
		// A concurrent call with the same bytes committed first.
		log.Debug("document classified concurrently; keeping stored version")
		stored, err := e.store.GetDocument(ctx, id)
		if err != nil {
			return types.Document{}, phaseError(filename, phaseIndex, err)
		}
		return stored, nil
	}
	if err != nil {
		return types.Document{}, phaseError(filename, phaseIndex, err)
	}
	doc.ChunkCount = len(chunks)

	log.Info("document processed",
		"kind", doc.Kind,
		"pages", len(doc.Pages),
		"chunks", doc.ChunkCount,
		"parties", len(doc.Parties),
		"issues", len(doc.Issues))
	return doc, nil
}

// ProcessFile reads a PDF from path and processes it under its base name.
func (e *Engine) ProcessFile(ctx context.Context, path string) (types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return e.ProcessDocument(ctx, filepath.Base(path), data)
}

// ProcessURL downloads a PDF and processes it like a local file.
func (e *Engine) ProcessURL(ctx context.Context, rawURL string) (types.Document, error) {
	dl, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return types.Document{}, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	e.logger.Debug("downloaded", "url", dl.URL, "bytes", len(dl.Data))
	return e.ProcessDocument(ctx, dl.Name, dl.Data)
}

// ProcessSource processes a local path or an http(s) URL.
func (e *Engine) ProcessSource(ctx context.Context, source string) (types.Document, error) {
	if acquire.IsURL(source) {
		return e.ProcessURL(ctx, source)
	}
	return e.ProcessFile(ctx, source)
}

// GenerateResponse drafts a new response of type rt for a classified
// document and stores it once every stage has finished. Retryable failures
// restart the whole generation, up to the configured number of attempts.
// Each call creates an independent response.
func (e *Engine) GenerateResponse(ctx context.Context, documentID string, rt types.ResponseType) (types.Response, error) {
	tone, err := types.ParseResponseType(string(rt))
	if err != nil {
		return types.Response{}, err
	}

	doc, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		return types.Response{}, err
	}
	if !doc.IsClassified() {
		return types.Response{}, fmt.Errorf("document %s: %w", documentID, types.ErrNotClassified)
	}

	if e.cfg.Generation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Generation.Timeout)
		defer cancel()
	}

	log := e.logger.With("document_id", documentID, "type", tone)
	attempts := max(1, e.cfg.Generation.MaxAttempts)

	var resp types.Response
	for attempt := 1; ; attempt++ {
		resp, err = e.pipeline.Generate(ctx, doc, tone)
		if err == nil {
			break
		}
		if attempt >= attempts || !types.Retryable(err) || ctx.Err() != nil {
			return types.Response{}, err
		}
		log.Warn("generation failed, restarting", "attempt", attempt, "error", err)
	}

	if err := e.store.SaveResponse(ctx, resp); err != nil {
		return types.Response{}, fmt.Errorf("saving response: %w", err)
	}
	log.Info("response generated",
		"response_id", resp.ID,
		"confidence", resp.Confidence,
		"precedents", len(resp.PrecedentIDs))
	return resp, nil
}

// Search returns at most n chunks most similar to query across the whole
// corpus.
func (e *Engine) Search(ctx context.Context, query string, n int) ([]types.SearchResult, error) {
	return e.SearchFiltered(ctx, query, n, knowledge.Filter{})
}

// SearchFiltered is Search restricted by chunk metadata.
func (e *Engine) SearchFiltered(ctx context.Context, query string, n int, f knowledge.Filter) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &types.InvalidQueryError{Reason: "query must not be empty"}
	}
	if n <= 0 {
		return nil, &types.InvalidQueryError{Reason: "n_results must be positive"}
	}
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors", len(vectors))
	}
	return e.store.Query(ctx, vectors[0], n, f)
}

// GetDocument returns a stored document. Missing ids wrap types.ErrNotFound.
func (e *Engine) GetDocument(ctx context.Context, id string) (types.Document, error) {
	return e.store.GetDocument(ctx, id)
}

// ListDocuments returns every stored document, newest first, without text.
func (e *Engine) ListDocuments(ctx context.Context) ([]types.Document, error) {
	return e.store.ListDocuments(ctx)
}

// DeleteDocument removes a document, its chunks and its responses.
// Missing ids wrap types.ErrNotFound.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	e.logger.Info("document deleted", "document_id", id)
	return nil
}

// GetStats summarises the stored corpus.
func (e *Engine) GetStats(ctx context.Context) (types.Stats, error) {
	return e.store.Stats(ctx)
}

// GetResponse returns a stored response.
func (e *Engine) GetResponse(ctx context.Context, id string) (types.Response, error) {
	return e.store.GetResponse(ctx, id)
}

// ListResponses returns the responses of a document, oldest first. An empty
// documentID lists every response.
func (e *Engine) ListResponses(ctx context.Context, documentID string) ([]types.Response, error) {
	return e.store.ListResponses(ctx, documentID)
}

// Export formats for Export.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Export writes documents with their responses to w in format. A non-empty
// documentID restricts the export to that document.
func (e *Engine) Export(ctx context.Context, format, documentID string, w io.Writer) error {
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		return e.store.ExportYAML(ctx, documentID, w)
	case FormatJSON:
		return e.store.ExportJSON(ctx, documentID, w)
	default:
		return &types.InvalidQueryError{Reason: fmt.Sprintf("unknown export format %q", format)}
	}
}
