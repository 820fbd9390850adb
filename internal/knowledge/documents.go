// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/legal-responder/pkg/types"
)

func upsertDocument(ctx context.Context, tx *sql.Tx, d types.Document) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content_hash, text, pages, kind, parties, issues, dates,
			summary, word_count, chunk_count, created_at, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename=excluded.filename, content_hash=excluded.content_hash, text=excluded.text,
			pages=excluded.pages, kind=excluded.kind, parties=excluded.parties,
			issues=excluded.issues, dates=excluded.dates, summary=excluded.summary,
			word_count=excluded.word_count, chunk_count=excluded.chunk_count,
			classified_at=excluded.classified_at`,
		d.ID, d.Filename, d.ContentHash, d.Text, marshalList(d.Pages), string(d.Kind),
		marshalList(d.Parties), marshalList(d.Issues), marshalList(d.Dates),
		d.Summary, d.WordCount, d.ChunkCount, formatTime(d.CreatedAt), formatTime(d.ClassifiedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", d.ID, err)
	}
	return nil
}

const documentColumns = `id, filename, content_hash, text, pages, kind, parties, issues, dates,
	summary, word_count, chunk_count, created_at, classified_at`

func scanDocument(row scanner) (types.Document, error) {
	var (
		d                             types.Document
		kind                          string
		pages, parties, issues, dates sql.NullString
		summary                       sql.NullString
		wordCount, chunkCount         sql.NullInt64
		created, classified           sql.NullString
	)
	if err := row.Scan(&d.ID, &d.Filename, &d.ContentHash, &d.Text, &pages, &kind,
		&parties, &issues, &dates, &summary, &wordCount, &chunkCount, &created, &classified); err != nil {
		return types.Document{}, err
	}
	d.Kind = types.DocumentKind(kind)
	d.Pages = unmarshalList[types.PageSpan](pages)
	d.Parties = unmarshalList[string](parties)
	d.Issues = unmarshalList[string](issues)
	d.Dates = unmarshalList[string](dates)
	d.Summary = summary.String
	d.WordCount = int(wordCount.Int64)
	d.ChunkCount = int(chunkCount.Int64)
	d.CreatedAt = parseTime(created)
	d.ClassifiedAt = parseTime(classified)
	d.ResponseIDs = []string{}
	return d, nil
}

// GetDocument returns the document with id and the ids of its responses,
// oldest first. It returns an error wrapping types.ErrNotFound when no such
// document exists.
func (s *Store) GetDocument(ctx context.Context, id string) (types.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Document{}, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Document{}, indexFault("get document", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM responses WHERE document_id = ? ORDER BY seq`, id)
	if err != nil {
		return types.Document{}, indexFault("get document", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return types.Document{}, indexFault("get document", err)
		}
		d.ResponseIDs = append(d.ResponseIDs, rid)
	}
	if err := rows.Err(); err != nil {
		return types.Document{}, indexFault("get document", err)
	}
	return d, nil
}

// ListDocuments returns every document, newest first. Text and page offsets
// are omitted; use GetDocument for the full record.
func (s *Store) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content_hash, '', NULL, kind, parties, issues, dates,
			summary, word_count, chunk_count, created_at, classified_at
		 FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, indexFault("list documents", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, indexFault("list documents", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFault("list documents", err)
	}

	counts, err := s.responseIDsByDocument(ctx)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if ids, ok := counts[docs[i].ID]; ok {
			docs[i].ResponseIDs = ids
		}
	}
	return docs, nil
}

func (s *Store) responseIDsByDocument(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id, id FROM responses ORDER BY seq`)
	if err != nil {
		return nil, indexFault("list responses", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var docID, id string
		if err := rows.Scan(&docID, &id); err != nil {
			return nil, indexFault("list responses", err)
		}
		out[docID] = append(out[docID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFault("list responses", err)
	}
	return out, nil
}

// DeleteDocument removes a document together with its chunks and responses
// in one transaction. It returns an error wrapping types.ErrNotFound when the
// document does not exist; any stray chunks for the id are removed anyway.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return indexFault("delete document", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM responses WHERE document_id = ?`,
		`DELETE FROM chunks WHERE document_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return indexFault("delete document", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return indexFault("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return indexFault("delete document", err)
	}

	if err := tx.Commit(); err != nil {
		return indexFault("delete document", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return nil
}
