// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-responder/internal/convert"
	"github.com/pdiddy/legal-responder/internal/embed"
	"github.com/pdiddy/legal-responder/internal/knowledge"
	"github.com/pdiddy/legal-responder/internal/model"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// --- fakes ---

// fakeExtractor treats the input bytes as text with pages separated by form
// feeds. Inputs starting with %BAD are rejected like an unparseable PDF.
type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, r io.Reader) (types.ExtractedText, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.ExtractedText{}, err
	}
	if bytes.HasPrefix(data, []byte("%BAD")) {
		return types.ExtractedText{}, &types.ExtractionError{Reason: "not a PDF"}
	}
	var (
		b     strings.Builder
		pages []types.PageSpan
	)
	for i, p := range strings.Split(string(data), "\f") {
		if i > 0 {
			b.WriteString("\n\n")
		}
		start := b.Len()
		b.WriteString(strings.TrimSpace(p))
		pages = append(pages, types.PageSpan{Page: i + 1, Start: start, End: b.Len()})
	}
	if strings.TrimSpace(b.String()) == "" {
		return types.ExtractedText{}, &types.ExtractionError{Reason: "no text layer"}
	}
	return types.ExtractedText{Text: b.String(), Pages: pages}, nil
}

// countingModel delegates to the heuristic backend, counting calls and
// failing the first draftFailures drafts.
type countingModel struct {
	*model.HeuristicBackend
	classifyErr   error
	draftFailures int32

	classifyCalls atomic.Int32
	draftCalls    atomic.Int32
}

func newCountingModel() *countingModel {
	return &countingModel{HeuristicBackend: model.NewHeuristicBackend()}
}

func (m *countingModel) Classify(ctx context.Context, text string) (model.Classification, error) {
	m.classifyCalls.Add(1)
	if m.classifyErr != nil {
		return model.Classification{}, m.classifyErr
	}
	return m.HeuristicBackend.Classify(ctx, text)
}

func (m *countingModel) Draft(ctx context.Context, req model.DraftRequest) (string, error) {
	if n := m.draftCalls.Add(1); n <= m.draftFailures {
		return "", errors.New("model overloaded")
	}
	return m.HeuristicBackend.Draft(ctx, req)
}

var fixedTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) types.Config {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.AI.MaxRetries = 0
	cfg.Chunking = types.ChunkingConfig{MaxChunkSize: 300, Overlap: 50, Tolerance: 100}
	cfg.Retrieval.MaxResults = 3
	return cfg
}

func newTestEngine(t *testing.T, cfg types.Config, m model.Capability) *Engine {
	t.Helper()
	if m == nil {
		m = model.NewHeuristicBackend()
	}
	e, err := New(cfg,
		WithExtractor(fakeExtractor{}),
		WithEmbedder(embed.NewHashEmbedder(256)),
		WithModel(m),
		WithClock(func() time.Time { return fixedTime }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

const contractPDF = `SERVICES AGREEMENT

This Services Agreement is entered into on March 1, 2026 between Orion Analytics Inc. and Vega Retail Ltd. The parties agree to the terms and conditions below.

1. Services: Orion Analytics Inc. shall provide monthly reporting services to Vega Retail Ltd. as described in Schedule A.` + "\f" +
	`2. Fees: Vega Retail Ltd. shall pay each invoice within thirty days of receipt. Late payment of any invoice is a material breach of this Agreement.

3. Term: This Agreement has an effective date of March 1, 2026 and continues for twelve months unless terminated earlier under clause 4.` + "\f" +
	`4. Termination: Either party may terminate this Agreement on thirty days written notice if the other party fails to remedy a breach.

5. Governing law: This Agreement is governed by the laws of the State of New York.

IN WITNESS WHEREOF the parties have executed this Agreement.`

const demandLetterPDF = `Dear Sir,

Re: Unpaid invoice under the reporting services agreement

We write on behalf of our client, Orion Analytics Inc., regarding a debt. Vega Retail Ltd. has failed to pay the February invoice of $12,000 for reporting services. Late payment is a breach of the services agreement.

We request payment within fourteen days.

Yours faithfully,
Mr. Daniel Hart`

// --- tests ---

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chunking.Overlap = cfg.Chunking.MaxChunkSize
	_, err := New(cfg, WithExtractor(fakeExtractor{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestDocumentID_StableForIdenticalBytes(t *testing.T) {
	a := DocumentID([]byte("same bytes"))
	assert.Equal(t, a, DocumentID([]byte("same bytes")))
	assert.NotEqual(t, a, DocumentID([]byte("other bytes")))
}

func TestProcessDocument_ThreePageContract(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	assert.Equal(t, DocumentID([]byte(contractPDF)), doc.ID)
	assert.Equal(t, "services.pdf", doc.Filename)
	assert.Equal(t, types.KindContract, doc.Kind)
	assert.NotEmpty(t, doc.Parties)
	assert.Contains(t, doc.Parties, "Orion Analytics Inc.")
	assert.Len(t, doc.Pages, 3)
	assert.True(t, doc.IsClassified())
	assert.Len(t, doc.ContentHash, 64)
	assert.Positive(t, doc.WordCount)
	assert.GreaterOrEqual(t, doc.ChunkCount, 3)

	chunks, err := e.store.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, doc.ChunkCount)

	pagesSeen := map[int]bool{}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		require.True(t, c.Start >= 0 && c.End <= len(doc.Text) && c.Start < c.End, "chunk %d out of range", i)
		assert.Equal(t, doc.Text[c.Start:c.End], c.Text)
		assert.Equal(t, types.KindContract, c.Metadata.DocumentKind)
		assert.True(t, c.Metadata.Page >= 1 && c.Metadata.Page <= 3, "chunk %d on page %d", i, c.Metadata.Page)
		pagesSeen[c.Metadata.Page] = true
	}
	assert.True(t, pagesSeen[1])
	assert.GreaterOrEqual(t, len(pagesSeen), 2)

	stored, err := e.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Kind, stored.Kind)
	assert.Equal(t, doc.Parties, stored.Parties)
	assert.Equal(t, fixedTime, stored.CreatedAt)
}

func TestProcessDocument_NativeExtractorContractPDF(t *testing.T) {
	pdf, err := os.ReadFile(filepath.Join("testdata", "services-agreement.pdf"))
	require.NoError(t, err)

	cfg := testConfig(t)
	e, err := New(cfg,
		WithExtractor(convert.NewNativeExtractor(cfg.Extraction.MaxBytes)),
		WithEmbedder(embed.NewHashEmbedder(256)),
		WithModel(model.NewHeuristicBackend()),
		WithClock(func() time.Time { return fixedTime }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services-agreement.pdf", pdf)
	require.NoError(t, err)
	assert.Equal(t, DocumentID(pdf), doc.ID)
	assert.Equal(t, types.KindContract, doc.Kind)
	assert.Contains(t, doc.Parties, "Orion Analytics Inc.")
	require.Len(t, doc.Pages, 3)
	assert.True(t, strings.HasPrefix(doc.Text, "SERVICES AGREEMENT"))

	chunks, err := e.store.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, doc.ChunkCount)
	for _, c := range chunks {
		assert.Equal(t, doc.Text[c.Start:c.End], c.Text)
		assert.True(t, c.Metadata.Page >= 1 && c.Metadata.Page <= 3)
	}

	resp, err := e.GenerateResponse(ctx, doc.ID, types.ResponseProfessional)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.True(t, resp.Confidence >= 0 && resp.Confidence <= 1)
}

func TestGenerateResponse_Contract(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	_, err := e.ProcessDocument(ctx, "letter.pdf", []byte(demandLetterPDF))
	require.NoError(t, err)
	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	resp, err := e.GenerateResponse(ctx, doc.ID, types.ResponseProfessional)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, doc.ID, resp.DocumentID)
	assert.Equal(t, types.ResponseProfessional, resp.Type)
	assert.NotEmpty(t, strings.TrimSpace(resp.Text))
	assert.LessOrEqual(t, len(resp.PrecedentIDs), cfg.Retrieval.MaxResults)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
	for _, id := range resp.PrecedentIDs {
		c, err := e.store.GetChunk(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, doc.ID, c.DocumentID, "precedent from the document itself")
	}

	stored, err := e.GetResponse(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Text, stored.Text)

	linked, err := e.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{resp.ID}, linked.ResponseIDs)
}

func TestGenerateResponse_EachCallIsIndependent(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	first, err := e.GenerateResponse(ctx, doc.ID, types.ResponseProfessional)
	require.NoError(t, err)
	second, err := e.GenerateResponse(ctx, doc.ID, types.ResponseAssertive)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Text, second.Text)

	resps, err := e.ListResponses(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, resps, 2)
	assert.Equal(t, first.ID, resps[0].ID)
	assert.Equal(t, first.Text, resps[0].Text)
}

func TestProcessDocument_IdenticalBytesReused(t *testing.T) {
	m := newCountingModel()
	e := newTestEngine(t, testConfig(t), m)
	ctx := context.Background()

	first, err := e.ProcessDocument(ctx, "a.pdf", []byte(contractPDF))
	require.NoError(t, err)
	second, err := e.ProcessDocument(ctx, "copy-of-a.pdf", []byte(contractPDF))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.pdf", second.Filename)
	assert.Equal(t, int32(1), m.classifyCalls.Load())

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, first.ChunkCount, stats.ChunkCount)
}

// gatedModel holds every Classify call until two have arrived, then answers
// the first with the heuristic verdict and the second, once released, with
// a different one.
type gatedModel struct {
	*model.HeuristicBackend
	calls   atomic.Int32
	arrived chan struct{}
	release chan struct{}
}

func (m *gatedModel) Classify(ctx context.Context, text string) (model.Classification, error) {
	n := m.calls.Add(1)
	m.arrived <- struct{}{}
	if n == 1 {
		return m.HeuristicBackend.Classify(ctx, text)
	}
	<-m.release
	return model.Classification{
		Kind:    "notice",
		Parties: []string{"Someone Else"},
		Issues:  []string{"unrelated notice"},
		Summary: "A different reading of the same bytes.",
	}, nil
}

func TestProcessDocument_ConcurrentIdenticalBytesKeepFirstClassification(t *testing.T) {
	m := &gatedModel{
		HeuristicBackend: model.NewHeuristicBackend(),
		arrived:          make(chan struct{}, 2),
		release:          make(chan struct{}),
	}
	e := newTestEngine(t, testConfig(t), m)
	ctx := context.Background()

	type result struct {
		doc types.Document
		err error
	}
	results := make(chan result, 2)
	for range 2 {
		go func() {
			doc, err := e.ProcessDocument(ctx, "c.pdf", []byte(contractPDF))
			results <- result{doc, err}
		}()
	}

	// Both calls are past the "already processed" check before either writes.
	<-m.arrived
	<-m.arrived

	first := <-results
	require.NoError(t, first.err)
	require.Equal(t, types.KindContract, first.doc.Kind)

	resp, err := e.GenerateResponse(ctx, first.doc.ID, types.ResponseProfessional)
	require.NoError(t, err)

	close(m.release)
	second := <-results
	require.NoError(t, second.err)
	assert.Equal(t, first.doc.ID, second.doc.ID)
	assert.Equal(t, types.KindContract, second.doc.Kind)
	assert.Equal(t, first.doc.Parties, second.doc.Parties)

	stored, err := e.GetDocument(ctx, first.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, types.KindContract, stored.Kind)
	assert.Equal(t, first.doc.Parties, stored.Parties)
	assert.Equal(t, first.doc.Summary, stored.Summary)
	assert.Equal(t, []string{resp.ID}, stored.ResponseIDs)

	chunks, err := e.store.Chunks(ctx, first.doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, types.KindContract, c.Metadata.DocumentKind)
	}
	assert.Equal(t, int32(2), m.calls.Load())
}

func TestProcessDocument_ExtractionFailure(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	_, err := e.ProcessDocument(ctx, "scan.pdf", []byte("%BAD image only"))
	require.Error(t, err)

	var extractErr *types.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Contains(t, err.Error(), "extract")
	assert.False(t, types.Retryable(err))

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.DocumentCount)
	assert.Zero(t, stats.ChunkCount)
}

func TestProcessDocument_ClassificationFailureLeavesNothing(t *testing.T) {
	m := newCountingModel()
	m.classifyErr = errors.New("service unavailable")
	e := newTestEngine(t, testConfig(t), m)
	ctx := context.Background()

	_, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.Error(t, err)

	var classErr *types.ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.Contains(t, err.Error(), "classify")
	assert.True(t, types.Retryable(err))

	_, err = e.GetDocument(ctx, DocumentID([]byte(contractPDF)))
	assert.ErrorIs(t, err, types.ErrNotFound)
	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunkCount)
}

func TestGenerateResponse_Preconditions(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	unclassified := types.Document{
		ID:          "raw-1",
		Filename:    "raw.pdf",
		ContentHash: "00",
		Text:        "Some text that was never classified.",
		CreatedAt:   fixedTime,
	}
	require.NoError(t, e.store.IndexDocument(ctx, unclassified, nil))

	_, err := e.GenerateResponse(ctx, "raw-1", types.ResponseFormal)
	assert.ErrorIs(t, err, types.ErrNotClassified)

	_, err = e.GenerateResponse(ctx, "missing", types.ResponseFormal)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = e.GenerateResponse(ctx, "raw-1", "sarcastic")
	var queryErr *types.InvalidQueryError
	assert.ErrorAs(t, err, &queryErr)

	resps, err := e.ListResponses(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, resps)
}

func TestGenerateResponse_RestartsRetryableFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.MaxAttempts = 2
	m := newCountingModel()
	m.draftFailures = 1
	e := newTestEngine(t, cfg, m)
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	resp, err := e.GenerateResponse(ctx, doc.ID, types.ResponseFormal)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
	assert.Equal(t, int32(2), m.draftCalls.Load())
}

func TestGenerateResponse_FailurePersistsNothing(t *testing.T) {
	m := newCountingModel()
	m.draftFailures = 10
	e := newTestEngine(t, testConfig(t), m)
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	_, err = e.GenerateResponse(ctx, doc.ID, types.ResponseFormal)
	var stageErr *types.PipelineStageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, types.StageDrafting, stageErr.Stage)
	assert.Equal(t, int32(1), m.draftCalls.Load())

	resps, err := e.ListResponses(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, resps)
}

func TestGenerateResponse_CancelledPersistsNothing(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)

	doc, err := e.ProcessDocument(context.Background(), "services.pdf", []byte(contractPDF))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.GenerateResponse(ctx, doc.ID, types.ResponseFormal)
	require.Error(t, err)

	resps, err := e.ListResponses(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, resps)
}

func TestSearch_MatchingChunksRankFirst(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	matching := []string{
		"The supplier committed a contract breach by missing every delivery date.",
		"Damages for contract breach include lost profits under the agreement.",
		"Notice of contract breach was served on the tenant in January.",
	}
	unrelated := []string{
		"The quarterly weather report predicts heavy rainfall in the valley.",
		"Our cafeteria menu now offers vegetarian lasagna on Tuesdays.",
		"Parking permits must be displayed on the dashboard at all times.",
		"The marathon route passes the river bridge twice.",
		"Quarterly sales of garden furniture rose sharply in spring.",
		"Please remember to water the office plants before leaving.",
		"Annual team photos will be taken in the main lobby.",
		"The printer on floor three needs new toner cartridges.",
		"Volunteers planted two hundred oak saplings near the school.",
		"The museum exhibit features ancient pottery from Crete.",
	}

	upsert := func(docID string, i int, text string) string {
		vecs, err := e.embedder.Embed(ctx, []string{text})
		require.NoError(t, err)
		c := types.Chunk{
			ID:         knowledge.ChunkID(docID, i),
			DocumentID: docID,
			Index:      i,
			End:        len(text),
			Text:       text,
		}
		require.NoError(t, e.store.Upsert(ctx, c, vecs[0]))
		return c.ID
	}

	want := map[string]bool{}
	for i, text := range matching {
		want[upsert("match", i, text)] = true
	}
	for i, text := range unrelated {
		upsert("other", i, text)
	}

	results, err := e.Search(ctx, "contract breach", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)

	got := map[string]bool{}
	for _, r := range results[:3] {
		got[r.Chunk.ID] = true
	}
	assert.Equal(t, want, got)
	assert.Greater(t, results[2].Score, results[3].Score)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearch_InvalidQueries(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	var queryErr *types.InvalidQueryError

	_, err := e.Search(context.Background(), "breach", 0)
	assert.ErrorAs(t, err, &queryErr)

	_, err = e.Search(context.Background(), "   ", 5)
	assert.ErrorAs(t, err, &queryErr)
}

func TestDeleteDocument_RemovesChunksAndResponses(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	other, err := e.ProcessDocument(ctx, "letter.pdf", []byte(demandLetterPDF))
	require.NoError(t, err)
	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)
	_, err = e.GenerateResponse(ctx, doc.ID, types.ResponseProfessional)
	require.NoError(t, err)

	before, err := e.Search(ctx, "termination notice breach governing law", 50)
	require.NoError(t, err)
	require.True(t, containsDocument(before, doc.ID))

	require.NoError(t, e.DeleteDocument(ctx, doc.ID))

	after, err := e.Search(ctx, "termination notice breach governing law", 50)
	require.NoError(t, err)
	assert.False(t, containsDocument(after, doc.ID))
	assert.True(t, containsDocument(after, other.ID))

	chunks, err := e.store.Chunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	resps, err := e.ListResponses(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, resps)

	assert.ErrorIs(t, e.DeleteDocument(ctx, doc.ID), types.ErrNotFound)
	_, err = e.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func containsDocument(results []types.SearchResult, docID string) bool {
	for _, r := range results {
		if r.Chunk.DocumentID == docID {
			return true
		}
	}
	return false
}

func TestProcessBatch_PartialFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Batch.Concurrency = 2
	e := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	dir := t.TempDir()
	good := filepath.Join(dir, "services.pdf")
	letter := filepath.Join(dir, "letter.pdf")
	bad := filepath.Join(dir, "scan.pdf")
	missing := filepath.Join(dir, "missing.pdf")
	require.NoError(t, os.WriteFile(good, []byte(contractPDF), 0o644))
	require.NoError(t, os.WriteFile(letter, []byte(demandLetterPDF), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("%BAD scanned"), 0o644))

	var out bytes.Buffer
	summary, err := e.ProcessBatch(ctx, []string{good, bad, missing, letter}, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 4, summary.Total())
	assert.True(t, summary.HasFailures())

	require.Len(t, summary.Items, 4)
	assert.Equal(t, good, summary.Items[0].Source)
	assert.Equal(t, types.BatchProcessed, summary.Items[0].Status)
	assert.Equal(t, types.KindContract, summary.Items[0].Kind)
	assert.Equal(t, types.BatchFailed, summary.Items[1].Status)
	var extractErr *types.ExtractionError
	assert.ErrorAs(t, summary.Items[1].Err, &extractErr)
	assert.Equal(t, types.BatchFailed, summary.Items[2].Status)
	assert.NotEmpty(t, summary.Items[2].Error)
	assert.Equal(t, types.BatchProcessed, summary.Items[3].Status)

	assert.Contains(t, out.String(), "failed    "+bad)
	assert.Contains(t, out.String(), "2 processed, 0 skipped, 2 failed (4 total)")

	again, err := e.ProcessBatch(ctx, []string{good}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)
	assert.Equal(t, types.BatchSkipped, again.Items[0].Status)
}

func TestProcessURL_DownloadsAndProcesses(t *testing.T) {
	body := "%PDF-1.4\n" + contractPDF
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agreements/services.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	defer ts.Close()

	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	doc, err := e.ProcessSource(ctx, ts.URL+"/agreements/services.pdf")
	require.NoError(t, err)
	assert.Equal(t, DocumentID([]byte(body)), doc.ID)
	assert.Equal(t, "services.pdf", doc.Filename)
	assert.Equal(t, types.KindContract, doc.Kind)

	var out bytes.Buffer
	summary, err := e.ProcessBatch(ctx, []string{ts.URL + "/agreements/services.pdf", ts.URL + "/missing.pdf"}, &out)
	require.NoError(t, err)
	assert.Equal(t, types.BatchSkipped, summary.Items[0].Status)
	assert.Equal(t, types.BatchFailed, summary.Items[1].Status)
	assert.Contains(t, summary.Items[1].Error, "HTTP 404")
}

func TestPDFsInDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	paths, err := PDFsInDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, paths)
}

func TestExport(t *testing.T) {
	e := newTestEngine(t, testConfig(t), nil)
	ctx := context.Background()

	doc, err := e.ProcessDocument(ctx, "services.pdf", []byte(contractPDF))
	require.NoError(t, err)
	resp, err := e.GenerateResponse(ctx, doc.ID, types.ResponseConciliatory)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, e.Export(ctx, FormatJSON, doc.ID, &buf))

	var entries []knowledge.ExportEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, doc.ID, entries[0].Document.ID)
	require.Len(t, entries[0].Responses, 1)
	assert.Equal(t, resp.ID, entries[0].Responses[0].ID)

	buf.Reset()
	require.NoError(t, e.Export(ctx, FormatYAML, "", &buf))
	assert.Contains(t, buf.String(), doc.ID)

	var queryErr *types.InvalidQueryError
	assert.ErrorAs(t, e.Export(ctx, "csv", "", io.Discard), &queryErr)
}
