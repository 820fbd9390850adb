// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// OpenAIBackend implements Capability with OpenAI-compatible chat completions.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIBackend creates a backend from cfg. The API key falls back to
// OPENAI_API_KEY.
func NewOpenAIBackend(cfg types.AIConfig) (*OpenAIBackend, error) {
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
	m := cfg.Model
	if m == "" {
		m = openai.GPT4o
	}
	return &OpenAIBackend{
		client:      openai.NewClientWithConfig(oc),
		model:       m,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (o *OpenAIBackend) Classify(ctx context.Context, text string) (Classification, error) {
	return promptClassify(ctx, o.complete, text)
}

func (o *OpenAIBackend) Draft(ctx context.Context, req DraftRequest) (string, error) {
	return promptDraft(ctx, o.complete, req)
}

func (o *OpenAIBackend) Score(ctx context.Context, req ScoreRequest) (Assessment, error) {
	return promptScore(ctx, o.complete, req)
}

func (o *OpenAIBackend) complete(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if wantJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
