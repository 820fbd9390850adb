// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// SaveResponse stores a completed response. The existence check and the
// insert share one transaction under the document's write lock, so a
// response is never stored for a document deleted while it was being
// generated.
func (s *Store) SaveResponse(ctx context.Context, r types.Response) error {
	if r.ID == "" || r.DocumentID == "" {
		return &types.InvalidQueryError{Reason: "response id and document id are required"}
	}

	unlock := s.locks.Lock(r.DocumentID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return indexFault("save response", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, r.DocumentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", r.DocumentID, types.ErrNotFound)
	}
	if err != nil {
		return indexFault("save response", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO responses (id, document_id, type, text, confidence, precedent_ids, precedents,
			reasoning, key_points, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.DocumentID, string(r.Type), r.Text, r.Confidence,
		marshalList(r.PrecedentIDs), marshalList(r.Precedents),
		r.Reasoning, marshalList(r.KeyPoints), formatTime(r.CreatedAt),
	)
	if err != nil {
		return indexFault("save response", err)
	}

	if err := tx.Commit(); err != nil {
		return indexFault("save response", err)
	}
	return nil
}

const responseColumns = `id, document_id, type, text, confidence, precedent_ids, precedents,
	reasoning, key_points, created_at`

func scanResponse(row scanner) (types.Response, error) {
	var (
		r                         types.Response
		rtype                     string
		precIDs, precs, keyPoints sql.NullString
		reasoning, created        sql.NullString
	)
	if err := row.Scan(&r.ID, &r.DocumentID, &rtype, &r.Text, &r.Confidence,
		&precIDs, &precs, &reasoning, &keyPoints, &created); err != nil {
		return types.Response{}, err
	}
	r.Type = types.ResponseType(rtype)
	r.PrecedentIDs = unmarshalList[string](precIDs)
	r.Precedents = unmarshalList[types.Precedent](precs)
	r.Reasoning = reasoning.String
	r.KeyPoints = unmarshalList[string](keyPoints)
	r.CreatedAt = parseTime(created)
	return r, nil
}

// GetResponse returns one response by id.
func (s *Store) GetResponse(ctx context.Context, id string) (types.Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = ?`, id)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Response{}, fmt.Errorf("response %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Response{}, indexFault("get response", err)
	}
	return r, nil
}

// ListResponses returns the responses of documentID, oldest first. An empty
// documentID lists every response.
func (s *Store) ListResponses(ctx context.Context, documentID string) ([]types.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses`
	var args []any
	if documentID != "" {
		query += ` WHERE document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, indexFault("list responses", err)
	}
	defer rows.Close()

	out := []types.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, indexFault("list responses", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFault("list responses", err)
	}
	return out, nil
}
