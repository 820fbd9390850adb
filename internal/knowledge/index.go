// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// ChunkID derives a chunk's id from its document and position.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%04d", documentID, index)
}

const upsertChunkSQL = `INSERT INTO chunks
	(id, document_id, chunk_index, start_offset, end_offset, text, embedding, dims, kind, filename, page)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		document_id=excluded.document_id, chunk_index=excluded.chunk_index,
		start_offset=excluded.start_offset, end_offset=excluded.end_offset,
		text=excluded.text, embedding=excluded.embedding, dims=excluded.dims,
		kind=excluded.kind, filename=excluded.filename, page=excluded.page`

// Upsert stores or replaces a chunk and its embedding. A replaced chunk
// keeps its original insertion sequence. The write is durable and visible to
// queries when Upsert returns.
func (s *Store) Upsert(ctx context.Context, c types.Chunk, embedding []float32) error {
	if c.ID == "" || c.DocumentID == "" {
		return &types.InvalidQueryError{Reason: "chunk id and document id are required"}
	}
	if len(embedding) == 0 {
		return &types.InvalidQueryError{Reason: "embedding must not be empty"}
	}

	unlock := s.locks.Lock(c.DocumentID)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, upsertChunkSQL, chunkArgs(c, embedding)...); err != nil {
		return indexFault("upsert", err)
	}
	return nil
}

// DeleteChunks removes every chunk of documentID. Deleting chunks of an
// unknown document is a no-op.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	unlock := s.locks.Lock(documentID)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return indexFault("delete", err)
	}
	return nil
}

// ErrAlreadyClassified is returned by IndexDocument when the stored document
// already carries a classification. Nothing is written in that case.
var ErrAlreadyClassified = errors.New("document already classified")

// IndexDocument stores doc and replaces its chunks in one transaction, so a
// failure leaves neither the document nor any of its chunks visible. Each
// chunk's Embedding must be set. A classified document is never replaced:
// the call returns an error wrapping ErrAlreadyClassified instead.
func (s *Store) IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	for _, c := range chunks {
		if c.DocumentID != doc.ID {
			return &types.InvalidQueryError{Reason: fmt.Sprintf("chunk %s belongs to %s, not %s", c.ID, c.DocumentID, doc.ID)}
		}
		if len(c.Embedding) == 0 {
			return &types.InvalidQueryError{Reason: fmt.Sprintf("chunk %s has no embedding", c.ID)}
		}
		if c.Start < 0 || c.End > len(doc.Text) || c.Start >= c.End {
			return &types.InvalidQueryError{Reason: fmt.Sprintf("chunk %s range [%d,%d) outside document text", c.ID, c.Start, c.End)}
		}
	}

	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return indexFault("index document", err)
	}
	defer tx.Rollback()

	var classifiedAt sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT classified_at FROM documents WHERE id = ?`, doc.ID).Scan(&classifiedAt)
	switch {
	case err == nil && !parseTime(classifiedAt).IsZero():
		return fmt.Errorf("document %s: %w", doc.ID, ErrAlreadyClassified)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return indexFault("index document", err)
	}

	doc.ChunkCount = len(chunks)
	if err := upsertDocument(ctx, tx, doc); err != nil {
		return indexFault("index document", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return indexFault("index document", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertChunkSQL)
	if err != nil {
		return indexFault("index document", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, chunkArgs(c, c.Embedding)...); err != nil {
			return indexFault("index document", fmt.Errorf("inserting chunk %s: %w", c.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return indexFault("index document", err)
	}
	return nil
}

// Chunks returns the chunks of documentID in order, with embeddings.
func (s *Store) Chunks(ctx context.Context, documentID string) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, indexFault("list chunks", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, indexFault("list chunks", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, indexFault("list chunks", err)
	}
	return out, nil
}

// GetChunk returns one chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (types.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Chunk{}, fmt.Errorf("chunk %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Chunk{}, indexFault("get chunk", err)
	}
	return c, nil
}

func chunkArgs(c types.Chunk, embedding []float32) []any {
	return []any{
		c.ID, c.DocumentID, c.Index, c.Start, c.End, c.Text,
		encodeVector(embedding), len(embedding),
		string(c.Metadata.DocumentKind), c.Metadata.Filename, c.Metadata.Page,
	}
}

const chunkColumns = `seq, id, document_id, chunk_index, start_offset, end_offset, text, embedding, kind, filename, page`

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (types.Chunk, error) {
	var (
		c        types.Chunk
		blob     []byte
		kind     string
		filename sql.NullString
		page     sql.NullInt64
	)
	if err := row.Scan(&c.Seq, &c.ID, &c.DocumentID, &c.Index, &c.Start, &c.End, &c.Text,
		&blob, &kind, &filename, &page); err != nil {
		return types.Chunk{}, err
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return types.Chunk{}, fmt.Errorf("chunk %s: %w", c.ID, err)
	}
	c.Embedding = vec
	c.Metadata = types.ChunkMetadata{
		DocumentID:   c.DocumentID,
		ChunkIndex:   c.Index,
		DocumentKind: types.DocumentKind(kind),
		Filename:     filename.String,
		Page:         int(page.Int64),
	}
	return c, nil
}
