// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/legal-responder/pkg/types"
)

const defaultSearchLimit = 5

// ProcessInput is the input schema for process_document.
type ProcessInput struct {
	Path string `json:"path" jsonschema:"path of the PDF file to ingest, or an http(s) URL to download it from"`
}

// GenerateInput is the input schema for generate_response.
type GenerateInput struct {
	DocumentID   string `json:"document_id" jsonschema:"id of a processed document"`
	ResponseType string `json:"response_type,omitempty" jsonschema:"tone: professional, formal, conciliatory or assertive (default professional)"`
}

// SearchInput is the input schema for search.
type SearchInput struct {
	Query string `json:"query" jsonschema:"text to find similar passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// DocumentInput is the input schema for get_document and delete_document.
type DocumentInput struct {
	DocumentID  string `json:"document_id" jsonschema:"document id"`
	IncludeText bool   `json:"include_text,omitempty" jsonschema:"include the extracted text"`
}

// StatsInput is the empty input schema for get_stats.
type StatsInput struct{}

// DocumentOutput describes a document.
type DocumentOutput struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Kind        string   `json:"kind"`
	Parties     []string `json:"parties"`
	Issues      []string `json:"issues"`
	Dates       []string `json:"dates"`
	Summary     string   `json:"summary"`
	Pages       int      `json:"pages"`
	WordCount   int      `json:"word_count"`
	ChunkCount  int      `json:"chunk_count"`
	ResponseIDs []string `json:"response_ids"`
	CreatedAt   string   `json:"created_at"`
	Text        string   `json:"text,omitempty"`
}

// PrecedentOutput is a precedent attached to a response.
type PrecedentOutput struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Rationale  string  `json:"rationale"`
}

// ResponseOutput describes a generated response.
type ResponseOutput struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Type       string            `json:"type"`
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Precedents []PrecedentOutput `json:"precedents"`
	Reasoning  string            `json:"reasoning"`
	KeyPoints  []string          `json:"key_points"`
}

// SearchOutput is the output schema for search.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput is one search hit.
type SearchResultOutput struct {
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Text       string  `json:"text"`
}

// DeleteOutput is the output schema for delete_document.
type DeleteOutput struct {
	DocumentID string `json:"document_id"`
	Deleted    bool   `json:"deleted"`
}

// StatsOutput is the output schema for get_stats.
type StatsOutput struct {
	DocumentCount  int   `json:"document_count"`
	ChunkCount     int   `json:"chunk_count"`
	ResponseCount  int   `json:"response_count"`
	IndexSizeBytes int64 `json:"index_size_bytes"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_document",
		Description: "Extract, classify and index a legal PDF from a local path",
	}, s.handleProcess)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_response",
		Description: "Draft a response to a processed document using retrieved precedents",
	}, s.handleGenerate)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find the stored passages most similar to a query",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Show a processed document and its classification",
	}, s.handleGetDocument)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document with its chunks and responses",
	}, s.handleDelete)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Count stored documents, chunks and responses",
	}, s.handleStats)
}

func (s *Server) handleProcess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	if input.Path == "" {
		return nil, DocumentOutput{}, &types.InvalidQueryError{Reason: "path is required"}
	}
	doc, err := s.svc.ProcessSource(ctx, input.Path)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, documentOutput(doc, false), nil
}

func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, ResponseOutput, error) {
	rt := types.ResponseType(input.ResponseType)
	if rt == "" {
		rt = types.ResponseProfessional
	}
	resp, err := s.svc.GenerateResponse(ctx, input.DocumentID, rt)
	if err != nil {
		return nil, ResponseOutput{}, err
	}
	return nil, responseOutput(resp), nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := s.svc.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{
			Rank:       r.Rank,
			Score:      r.Score,
			ChunkID:    r.Chunk.ID,
			DocumentID: r.Chunk.DocumentID,
			Filename:   r.Chunk.Metadata.Filename,
			Page:       r.Chunk.Metadata.Page,
			Text:       r.Chunk.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) handleGetDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.svc.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, documentOutput(doc, input.IncludeText), nil
}

func (s *Server) handleDelete(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentInput,
) (*mcp.CallToolResult, DeleteOutput, error) {
	if err := s.svc.DeleteDocument(ctx, input.DocumentID); err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{DocumentID: input.DocumentID, Deleted: true}, nil
}

func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.svc.GetStats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput(st), nil
}

func documentOutput(d types.Document, withText bool) DocumentOutput {
	out := DocumentOutput{
		ID:          d.ID,
		Filename:    d.Filename,
		Kind:        string(d.Kind),
		Parties:     nonNil(d.Parties),
		Issues:      nonNil(d.Issues),
		Dates:       nonNil(d.Dates),
		Summary:     d.Summary,
		Pages:       len(d.Pages),
		WordCount:   d.WordCount,
		ChunkCount:  d.ChunkCount,
		ResponseIDs: nonNil(d.ResponseIDs),
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withText {
		out.Text = d.Text
	}
	return out
}

func responseOutput(r types.Response) ResponseOutput {
	out := ResponseOutput{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Type:       string(r.Type),
		Text:       r.Text,
		Confidence: r.Confidence,
		Precedents: make([]PrecedentOutput, len(r.Precedents)),
		Reasoning:  r.Reasoning,
		KeyPoints:  nonNil(r.KeyPoints),
	}
	for i, p := range r.Precedents {
		out.Precedents[i] = PrecedentOutput(p)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
