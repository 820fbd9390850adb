// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pdiddy/legal-responder/pkg/types"
)

const defaultBatchSize = 64

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dims      int
	batchSize int
	limiter   *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder from cfg. The API key falls back to
// OPENAI_API_KEY.
func NewOpenAIEmbedder(cfg types.EmbeddingConfig) (*OpenAIEmbedder, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	e := &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(oc),
		model:     model,
		dims:      cfg.Dimensions,
		batchSize: batch,
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}
	return e, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

func (e *OpenAIEmbedder) Model() string { return "openai-" + e.model }

// Embed sends texts in batches and returns normalised vectors in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for lo := 0; lo < len(texts); lo += e.batchSize {
		hi := min(lo+e.batchSize, len(texts))
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      texts[lo:hi],
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.dims,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != hi-lo {
			return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), hi-lo)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= hi-lo {
				return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
			}
			if len(d.Embedding) != e.dims {
				return nil, fmt.Errorf("openai embeddings: got %d dimensions, want %d", len(d.Embedding), e.dims)
			}
			v := make([]float32, len(d.Embedding))
			copy(v, d.Embedding)
			Normalize(v)
			out[lo+d.Index] = v
		}
	}
	return out, nil
}
