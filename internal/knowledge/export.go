// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// ExportEntry is a document with the responses generated for it.
type ExportEntry struct {
	Document  types.Document   `json:"document" yaml:"document"`
	Responses []types.Response `json:"responses" yaml:"responses"`
}

// ExportYAML writes every document and its responses to w as YAML. A
// non-empty documentID restricts the export to that document.
func (s *Store) ExportYAML(ctx context.Context, documentID string, w io.Writer) error {
	entries, err := s.exportEntries(ctx, documentID)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes every document and its responses to w as indented JSON.
// A non-empty documentID restricts the export to that document.
func (s *Store) ExportJSON(ctx context.Context, documentID string, w io.Writer) error {
	entries, err := s.exportEntries(ctx, documentID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, documentID string) ([]ExportEntry, error) {
	var ids []string
	if documentID != "" {
		ids = []string{documentID}
	} else {
		docs, err := s.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying for export: %w", err)
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
	}

	entries := make([]ExportEntry, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		resps, err := s.ListResponses(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ExportEntry{Document: doc, Responses: resps})
	}
	return entries, nil
}
