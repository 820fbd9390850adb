// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes the engine operations as Model Context Protocol
// tools and resources, so an assistant can ingest legal PDFs, search the
// corpus and draft responses over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// ErrMissingService is returned when no engine is supplied.
var ErrMissingService = errors.New("mcpserver: service is required")

// Service is the subset of the engine the server calls.
type Service interface {
	ProcessSource(ctx context.Context, source string) (types.Document, error)
	GenerateResponse(ctx context.Context, documentID string, rt types.ResponseType) (types.Response, error)
	Search(ctx context.Context, query string, n int) ([]types.SearchResult, error)
	GetDocument(ctx context.Context, id string) (types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	GetStats(ctx context.Context) (types.Stats, error)
}

// Server is the MCP server for legal-responder.
type Server struct {
	svc    Service
	server *mcp.Server
	logger *slog.Logger
}

// NewServer creates a server reporting version in its implementation info.
func NewServer(svc Service, version string, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, ErrMissingService
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	impl := &mcp.Implementation{
		Name:    "legal-responder",
		Version: version,
	}
	s := &Server{
		svc:    svc,
		server: mcp.NewServer(impl, nil),
		logger: logger,
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
