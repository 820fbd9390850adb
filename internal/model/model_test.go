// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-responder/internal/httputil"
	"github.com/pdiddy/legal-responder/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

const contractText = `MASTER SUPPLY AGREEMENT

This Master Supply Agreement is made on January 15, 2026 between Acme Corporation and Beta Supplies LLC.

WHEREAS the parties agree that Beta Supplies LLC shall deliver components monthly. The Buyer shall pay each invoice within thirty days.

Governing law: the laws of the State of Delaware shall apply. The parties agree to the terms and conditions below.

Beta Supplies LLC failed to deliver the March shipment, which is a material breach of this Agreement. Acme Corporation demands compensation for damages caused by the delay.`

const letterText = `Re: Outstanding invoice

Dear Ms. Jane Carter,

We write on behalf of our client regarding invoice 1042 dated 2026-02-01. The invoice remains unpaid despite two reminders.

Please arrange payment by March 30, 2026.

Sincerely,
Tom Baker`

const complaintText = `COMPLAINT

Plaintiff Harbor Logistics Inc. alleges that Defendant Northwind Ltd. breached the shipping contract. The court has jurisdiction over this cause of action. Plaintiff seeks damages and further relief sought by this complaint.`

func TestNew(t *testing.T) {
	c, err := New(types.AIConfig{Provider: types.ProviderHeuristic})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicBackend{}, c)

	c, err = New(types.AIConfig{})
	require.NoError(t, err)
	assert.IsType(t, &HeuristicBackend{}, c)

	c, err = New(types.AIConfig{Provider: types.ProviderHeuristic, RequestsPerMinute: 60})
	require.NoError(t, err)
	assert.IsType(t, &Limited{}, c)

	_, err = New(types.AIConfig{Provider: "mystery"})
	assert.Error(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = New(types.AIConfig{Provider: types.ProviderClaude})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	t.Setenv("OPENAI_API_KEY", "")
	_, err = New(types.AIConfig{Provider: types.ProviderOpenAI})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	c, err = New(types.AIConfig{Provider: types.ProviderClaude, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultClaudeModel, c.(*ClaudeBackend).Model)
}

func TestDecodeJSON(t *testing.T) {
	var c Classification
	require.NoError(t, decodeJSON("```json\n{\"kind\": \"notice\", \"parties\": [\"A\"]}\n```", &c))
	assert.Equal(t, "notice", c.Kind)
	assert.Equal(t, []string{"A"}, c.Parties)

	assert.Error(t, decodeJSON("no braces here", &c))
	assert.Error(t, decodeJSON("{not json}", &c))
}

func TestParseAssessment(t *testing.T) {
	a, err := parseAssessment(`{"confidence": 0.8, "reasoning": "solid", "key_points": ["payment", "deadline"]}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, a.Confidence, 1e-9)
	assert.Equal(t, "solid", a.Reasoning)
	assert.Equal(t, []string{"payment", "deadline"}, a.KeyPoints)

	a, err = parseAssessment("CONFIDENCE: 0.65\nREASONING: Covers the main issue.\nKEY_POINTS: [late payment, interest]")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, a.Confidence, 1e-9)
	assert.Equal(t, "Covers the main issue.", a.Reasoning)
	assert.Equal(t, []string{"late payment", "interest"}, a.KeyPoints)

	_, err = parseAssessment("looks fine to me")
	assert.Error(t, err)

	_, err = parseAssessment("CONFIDENCE: high\nREASONING: x")
	assert.Error(t, err)
}

func TestToneInstruction(t *testing.T) {
	seen := make(map[string]bool)
	for _, rt := range types.ResponseTypes {
		s, err := ToneInstruction(rt)
		require.NoError(t, err, rt)
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "tone %s shares an instruction", rt)
		seen[s] = true
	}

	_, err := ToneInstruction("sarcastic")
	var qe *types.InvalidQueryError
	assert.ErrorAs(t, err, &qe)
}

func sampleBrief() Brief {
	return Brief{
		DocumentID: "doc-1",
		Filename:   "supply-dispute.pdf",
		Kind:       types.KindContract,
		Summary:    "Supply agreement with a missed shipment.",
		Parties:    []string{"Acme Corporation", "Beta Supplies LLC"},
		Issues:     []string{"Failure to deliver the March shipment.", "Compensation for damages caused by delay"},
		Dates:      []string{"January 15, 2026"},
	}
}

func TestDraftPrompt(t *testing.T) {
	p, err := draftPrompt(DraftRequest{Brief: sampleBrief(), Tone: types.ResponseAssertive})
	require.NoError(t, err)
	assert.Contains(t, p, toneInstructions[types.ResponseAssertive])
	assert.Contains(t, p, "1. Failure to deliver the March shipment.")
	assert.Contains(t, p, "2. Compensation for damages caused by delay")
	assert.Contains(t, p, "Acme Corporation; Beta Supplies LLC")
	assert.Contains(t, p, "None on file.")

	p, err = draftPrompt(DraftRequest{
		Brief: sampleBrief(),
		Tone:  types.ResponseFormal,
		Precedents: []Precedent{
			{Filename: "old-supply.pdf", Score: 0.82, Rationale: "shares delivery, shipment", Text: "Late delivery clause."},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, p, "1. old-supply.pdf (relevance 82%): shares delivery, shipment")
	assert.NotContains(t, p, "None on file.")

	_, err = draftPrompt(DraftRequest{Brief: sampleBrief(), Tone: "casual"})
	assert.Error(t, err)
}

func TestHeuristic_ClassifyContract(t *testing.T) {
	c, err := NewHeuristicBackend().Classify(context.Background(), contractText)
	require.NoError(t, err)

	assert.Equal(t, "contract", c.Kind)
	assert.Equal(t, []string{"Acme Corporation", "Beta Supplies LLC"}, c.Parties)
	assert.Equal(t, []string{"January 15, 2026"}, c.Dates)
	require.NotEmpty(t, c.Issues)
	assert.Contains(t, c.Issues[0], "material breach")
	assert.True(t, strings.HasPrefix(c.Summary, "MASTER SUPPLY AGREEMENT"))
}

func TestHeuristic_ClassifyLetter(t *testing.T) {
	c, err := NewHeuristicBackend().Classify(context.Background(), letterText)
	require.NoError(t, err)

	assert.Equal(t, "letter", c.Kind)
	assert.Contains(t, c.Parties, "Ms. Jane Carter")
	assert.Equal(t, []string{"2026-02-01", "March 30, 2026"}, c.Dates)
	assert.NotEmpty(t, c.Issues)
}

func TestHeuristic_ClassifyComplaint(t *testing.T) {
	c, err := NewHeuristicBackend().Classify(context.Background(), complaintText)
	require.NoError(t, err)

	assert.Equal(t, "complaint", c.Kind)
	assert.Equal(t, []string{"Harbor Logistics Inc.", "Northwind Ltd."}, c.Parties)
}

func TestHeuristic_ClassifyEmpty(t *testing.T) {
	c, err := NewHeuristicBackend().Classify(context.Background(), "   ")
	require.NoError(t, err)

	assert.Equal(t, "unknown", c.Kind)
	assert.NotNil(t, c.Parties)
	assert.NotNil(t, c.Issues)
	assert.NotNil(t, c.Dates)
	assert.Empty(t, c.Summary)
}

func TestHeuristic_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := NewHeuristicBackend()

	_, err := h.Classify(ctx, contractText)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.Draft(ctx, DraftRequest{Brief: sampleBrief(), Tone: types.ResponseFormal})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = h.Score(ctx, ScoreRequest{Brief: sampleBrief()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeuristic_DraftVariesByTone(t *testing.T) {
	h := NewHeuristicBackend()
	precedents := []Precedent{{Filename: "old-supply.pdf", Rationale: "shares shipment, delivery"}}

	drafts := make(map[string]bool)
	for _, rt := range types.ResponseTypes {
		d, err := h.Draft(context.Background(), DraftRequest{Brief: sampleBrief(), Precedents: precedents, Tone: rt})
		require.NoError(t, err, rt)

		assert.True(t, strings.HasPrefix(d, "Re: supply-dispute.pdf"))
		assert.Contains(t, d, "Dear Acme Corporation,")
		assert.Contains(t, d, `1. As to "Failure to deliver the March shipment",`)
		assert.Contains(t, d, "- old-supply.pdf: shares shipment, delivery")
		assert.Contains(t, d, toneStyles[rt].SignOff)
		assert.False(t, drafts[d])
		drafts[d] = true
	}

	_, err := h.Draft(context.Background(), DraftRequest{Brief: sampleBrief(), Tone: "casual"})
	var qe *types.InvalidQueryError
	assert.ErrorAs(t, err, &qe)
}

func TestHeuristic_DraftWithoutIssuesOrParties(t *testing.T) {
	d, err := NewHeuristicBackend().Draft(context.Background(), DraftRequest{
		Brief: Brief{Kind: types.KindNotice},
		Tone:  types.ResponseProfessional,
	})
	require.NoError(t, err)
	assert.Contains(t, d, "Re: your notice")
	assert.Contains(t, d, "Dear Sir or Madam,")
	assert.Contains(t, d, "no further points")
}

func TestHeuristic_ScoreCoverage(t *testing.T) {
	h := NewHeuristicBackend()
	brief := sampleBrief()

	d, err := h.Draft(context.Background(), DraftRequest{Brief: brief, Tone: types.ResponseProfessional})
	require.NoError(t, err)

	a, err := h.Score(context.Background(), ScoreRequest{Brief: brief, Tone: types.ResponseProfessional, Draft: d})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, a.Confidence, 1e-9)
	assert.Len(t, a.KeyPoints, 2)
	assert.Contains(t, a.Reasoning, "2 of 2 issues")

	a, err = h.Score(context.Background(), ScoreRequest{Brief: brief, Draft: "Noted, thanks."})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, a.Confidence, 1e-9)
	assert.Empty(t, a.KeyPoints)
	assert.NotNil(t, a.KeyPoints)

	a, err = h.Score(context.Background(), ScoreRequest{Brief: Brief{}, Draft: "Noted, thanks."})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, a.Confidence, 1e-9)
}

func TestSentences(t *testing.T) {
	got := sentences("First one. Second\n line? Third!\n\nHeading\n\nLast v1.2 value")
	var texts []string
	for _, s := range got {
		texts = append(texts, s.text)
	}
	assert.Equal(t, []string{"First one.", "Second line?", "Third!", "Heading", "Last v1.2 value"}, texts)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "short", truncateWords("short", 10))
	assert.Equal(t, "alpha beta...", truncateWords("alpha beta gamma", 12))
	assert.Equal(t, "§...", truncateWords("§§§§§", 3))
	assert.True(t, utf8.ValidString(truncateWords("Überweisungsfrist", 5)))
}

// --- Claude backend ---

func claudeServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	t.Cleanup(func() { claudeAPIURL = old })
}

func claudeReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claudeResponse{Content: []claudeContent{{Type: "text", Text: text}}})
}

func TestClaudeBackend_Classify(t *testing.T) {
	var gotReq claudeRequest
	claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		claudeReply(w, `{"kind": "Legal_Letter", "parties": ["Acme"], "issues": [], "dates": [], "summary": "A letter."}`)
	})

	b := &ClaudeBackend{APIKey: "test-key", Model: "test-model"}
	c, err := b.Classify(context.Background(), "Dear Acme, ...")
	require.NoError(t, err)

	assert.Equal(t, "Legal_Letter", c.Kind)
	assert.Equal(t, []string{"Acme"}, c.Parties)
	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, 4096, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 1)
	assert.Contains(t, gotReq.Messages[0].Content, "Dear Acme, ...")
}

func TestClaudeBackend_RetriesOverload(t *testing.T) {
	var calls int32
	claudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(httputil.StatusOverloaded)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Draft a response")
		claudeReply(w, "  Dear Sir,\n\nWe disagree.  ")
	})

	b := &ClaudeBackend{APIKey: "k", Model: "m", MaxRetries: 2}
	d, err := b.Draft(context.Background(), DraftRequest{Brief: sampleBrief(), Tone: types.ResponseProfessional})
	require.NoError(t, err)
	assert.Equal(t, "Dear Sir,\n\nWe disagree.", d)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClaudeBackend_Score(t *testing.T) {
	claudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		claudeReply(w, "Here you go:\n{\"confidence\": 0.7, \"reasoning\": \"ok\", \"key_points\": [\"delivery\"]}")
	})

	b := &ClaudeBackend{APIKey: "k", Model: "m"}
	a, err := b.Score(context.Background(), ScoreRequest{Brief: sampleBrief(), Draft: "text"})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, a.Confidence, 1e-9)
	assert.Equal(t, []string{"delivery"}, a.KeyPoints)
}

func TestClaudeBackend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"bad status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad"}`))
		}, "returned 400"},
		{"no text", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(claudeResponse{})
		}, "no text content"},
		{"not json", func(w http.ResponseWriter, _ *http.Request) {
			claudeReply(w, "I think it is a letter.")
		}, "no JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claudeServer(t, tt.handler)
			b := &ClaudeBackend{APIKey: "k", Model: "m"}
			_, err := b.Classify(context.Background(), "text")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// --- OpenAI backend ---

func TestOpenAIBackend_JSONModeForClassify(t *testing.T) {
	var formats []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req struct {
			ResponseFormat *struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		format := ""
		if req.ResponseFormat != nil {
			format = req.ResponseFormat.Type
		}
		formats = append(formats, format)

		content := "Dear Sir, we respond."
		if format == "json_object" {
			content = `{"kind": "notice", "parties": [], "issues": ["late rent"], "dates": [], "summary": "s"}`
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	defer ts.Close()

	b, err := NewOpenAIBackend(types.AIConfig{APIKey: "k", BaseURL: ts.URL, Model: "gpt-test"})
	require.NoError(t, err)

	c, err := b.Classify(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "notice", c.Kind)
	assert.Equal(t, []string{"late rent"}, c.Issues)

	d, err := b.Draft(context.Background(), DraftRequest{Brief: sampleBrief(), Tone: types.ResponseConciliatory})
	require.NoError(t, err)
	assert.Equal(t, "Dear Sir, we respond.", d)

	assert.Equal(t, []string{"json_object", ""}, formats)
}

// --- rate limiter ---

type countingCapability struct {
	calls atomic.Int32
}

func (c *countingCapability) Classify(context.Context, string) (Classification, error) {
	c.calls.Add(1)
	return Classification{Kind: "letter"}, nil
}

func (c *countingCapability) Draft(context.Context, DraftRequest) (string, error) {
	c.calls.Add(1)
	return "draft", nil
}

func (c *countingCapability) Score(context.Context, ScoreRequest) (Assessment, error) {
	c.calls.Add(1)
	return Assessment{Confidence: 1}, nil
}

func TestLimited(t *testing.T) {
	next := &countingCapability{}
	l := NewLimited(next, 6000)

	_, err := l.Classify(context.Background(), "x")
	require.NoError(t, err)
	_, err = l.Draft(context.Background(), DraftRequest{})
	require.NoError(t, err)
	_, err = l.Score(context.Background(), ScoreRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Classify(ctx, "x")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(3), next.calls.Load())
}
