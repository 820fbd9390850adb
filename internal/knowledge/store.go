// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists documents, their embedded chunks and generated
// responses in one SQLite database. The chunks table is the embedding index:
// vectors are stored as little-endian float32 blobs and queried by brute
// force cosine similarity with SQL metadata filters.
//
// Writes for a document id are serialised by a per-key lock and committed in
// a single transaction. Reads take no lock; WAL mode lets them proceed while
// unrelated writes are in flight.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/legal-responder/pkg/types"
)

const dbFile = "legal-responder.db"

// Store manages the SQLite database.
type Store struct {
	db    *sql.DB
	path  string
	locks *keyLock
}

// NewStore opens or creates the database at dataDir/legal-responder.db and
// creates the schema if it does not exist. Every commit is synced to disk
// before it returns.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, dbFile)
	dsn := path + "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, locks: newKeyLock()}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			text TEXT NOT NULL,
			pages TEXT,
			kind TEXT NOT NULL DEFAULT '',
			parties TEXT,
			issues TEXT,
			dates TEXT,
			summary TEXT,
			word_count INTEGER,
			chunk_count INTEGER,
			created_at TEXT NOT NULL,
			classified_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB NOT NULL,
			dims INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			filename TEXT,
			page INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_kind ON chunks(kind)`,
		`CREATE TABLE IF NOT EXISTS responses (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			type TEXT NOT NULL,
			text TEXT NOT NULL,
			confidence REAL NOT NULL,
			precedent_ids TEXT,
			precedents TEXT,
			reasoning TEXT,
			key_points TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_document_id ON responses(document_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Stats counts stored rows and reports the on-disk size of the database,
// including its write-ahead log.
func (s *Store) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM documents),
		        (SELECT count(*) FROM chunks),
		        (SELECT count(*) FROM responses)`,
	).Scan(&st.DocumentCount, &st.ChunkCount, &st.ResponseCount)
	if err != nil {
		return types.Stats{}, indexFault("stats", err)
	}
	for _, p := range []string{s.path, s.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			st.IndexSizeBytes += info.Size()
		}
	}
	return st, nil
}

// indexFault wraps a storage error. Context cancellation is passed through
// unchanged so callers can tell an abandoned call from a broken store.
func indexFault(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &types.IndexUnavailableError{Op: op, Err: err}
}

// encodeVector packs v as little-endian float32.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

func marshalList[T any](v []T) string {
	if v == nil {
		v = []T{}
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func unmarshalList[T any](s sql.NullString) []T {
	out := []T{}
	if s.Valid && s.String != "" {
		json.Unmarshal([]byte(s.String), &out)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s.String)
	return t
}
