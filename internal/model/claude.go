// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pdiddy/legal-responder/internal/httputil"
	"github.com/pdiddy/legal-responder/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// ClaudeBackend implements Capability with the Claude Messages API.
type ClaudeBackend struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	Client      *http.Client
}

// NewClaudeBackend creates a backend from cfg. The API key falls back to
// ANTHROPIC_API_KEY.
func NewClaudeBackend(cfg types.AIConfig) (*ClaudeBackend, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}
	m := cfg.Model
	if m == "" {
		m = defaultClaudeModel
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &ClaudeBackend{
		APIKey:      key,
		Model:       m,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		Client:      client,
	}, nil
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *ClaudeBackend) Classify(ctx context.Context, text string) (Classification, error) {
	return promptClassify(ctx, c.complete, text)
}

func (c *ClaudeBackend) Draft(ctx context.Context, req DraftRequest) (string, error) {
	return promptDraft(ctx, c.complete, req)
}

func (c *ClaudeBackend) Score(ctx context.Context, req ScoreRequest) (Assessment, error) {
	return promptScore(ctx, c.complete, req)
}

// complete sends one user message and returns the concatenated text blocks
// of the reply. Claude has no JSON mode; the prompts ask for JSON instead.
func (c *ClaudeBackend) complete(ctx context.Context, prompt string, _ bool) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: c.Temperature,
		Messages:    []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var out bytes.Buffer
	for _, block := range cResp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("no text content in Claude API response")
	}
	return out.String(), nil
}
