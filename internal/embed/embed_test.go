// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-responder/pkg/types"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	h := NewHashEmbedder(0)
	assert.Equal(t, 384, h.Dimensions())

	texts := []string{"Breach of contract by the supplier", "Notice of lease termination"}
	a, err := h.Embed(context.Background(), texts)
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 384)
}

func TestHashEmbedder_SelfSimilarityIsOne(t *testing.T) {
	h := NewHashEmbedder(128)
	vecs, err := h.Embed(context.Background(), []string{"The tenant failed to pay rent for March."})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[0]), 1e-6)
}

func TestHashEmbedder_SharedVocabularyRanksHigher(t *testing.T) {
	h := NewHashEmbedder(384)
	vecs, err := h.Embed(context.Background(), []string{
		"contract breach",
		"The supplier committed a material breach of the supply contract.",
		"Quarterly garden maintenance schedule for the courtyard plants.",
	})
	require.NoError(t, err)
	related := Cosine(vecs[0], vecs[1])
	unrelated := Cosine(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
	assert.Greater(t, related, 0.2)
}

func TestHashEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	h := NewHashEmbedder(16)
	vecs, err := h.Embed(context.Background(), []string{"   the of and  "})
	require.NoError(t, err)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func TestHashEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	got := Tokenize("The Landlord's NOTICE, dated 3 May 2024, shall be void.")
	assert.Equal(t, []string{"landlord", "notice", "dated", "may", "2024", "void"}, got)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestNew(t *testing.T) {
	e, err := New(types.EmbeddingConfig{Provider: types.EmbeddingHash, Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "hash-32", e.Model())

	_, err = New(types.EmbeddingConfig{Provider: "bert"})
	require.Error(t, err)
}

func TestOpenAIEmbedder_BatchesAndOrders(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Dimensions)

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		// Reply in reverse order to check that Index is honoured.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = item{Object: "embedding", Embedding: []float32{float32(len(req.Input[j])), 1}, Index: j}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  "text-embedding-3-small",
		})
	}))
	defer ts.Close()

	e, err := NewOpenAIEmbedder(types.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    ts.URL + "/v1",
		Dimensions: 2,
		BatchSize:  2,
	})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, Cosine(v, v), 1e-6)
	}
	// Longer inputs got a larger first component before normalisation.
	assert.Greater(t, vecs[1][0], vecs[0][0])
	assert.Greater(t, vecs[2][0], vecs[1][0])
	assert.Equal(t, "openai-text-embedding-3-small", e.Model())
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIEmbedder(types.EmbeddingConfig{Dimensions: 8})
	require.Error(t, err)
}
