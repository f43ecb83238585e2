package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// Chunk is a self-contained, independently retrievable unit of document
// text. Content is the exact text that was embedded and is later injected
// into prompts.
type Chunk struct {
	ID      string
	Title   string
	Content string
}

// ScoredChunk pairs a chunk with its similarity score. Produced only by
// search, never persisted.
type ScoredChunk struct {
	Chunk      Chunk
	DocumentID string
	Position   int
	Score      float64
}

var (
	// ErrEmptyDocument is returned when a build is attempted with zero
	// chunks or vectors.
	ErrEmptyDocument = errors.New("document has no chunks to index")

	// ErrDocumentExists is returned when a document id already has a
	// live index entry. Re-uploads must be rejected, not merged.
	ErrDocumentExists = errors.New("document is already indexed")

	// ErrIndexCorrupt marks unreadable on-disk artifacts for a single
	// document. Multi-document search logs it and continues.
	ErrIndexCorrupt = errors.New("document index is corrupt")
)

// Store keeps one similarity index plus chunk table per document, all in
// a single SQLite database. Build and Delete for a document are single
// transactions, so a concurrent search sees either the fully-built index
// or nothing, never a partial write.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the index database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	}
	for _, stmt := range pragmas {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init index db: %w", err)
		}
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			dims INTEGER NOT NULL,
			chunk_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			doc_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			chunk_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			vector TEXT NOT NULL,
			PRIMARY KEY (doc_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks (doc_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init index db: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Build creates the index entry for a document: the chunks and their
// L2-normalized vectors, with the chunk id persisted alongside each
// position. Fails with ErrEmptyDocument on zero chunks and with
// ErrDocumentExists when the id already has a live entry.
func (s *Store) Build(ctx context.Context, docID string, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return ErrEmptyDocument
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	dims := len(vectors[0])
	if dims == 0 {
		return fmt.Errorf("vectors must not be empty")
	}
	for i, vec := range vectors {
		if len(vec) != dims {
			return fmt.Errorf("vector %d dimension mismatch: %d vs %d", i, len(vec), dims)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrDocumentExists, docID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, dims, chunk_count) VALUES (?, ?, ?)`,
		docID, dims, len(chunks),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(doc_id, position, chunk_id, title, content, vector)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		vectorJSON, err := encodeVector(normalize(vectors[i]))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			docID, i, chunk.ID, chunk.Title, chunk.Content, vectorJSON,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a document's index and chunk table together. It is
// idempotent: deleting an absent document is a no-op.
func (s *Store) Delete(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return err
	}
	return tx.Commit()
}

// Exists reports whether a document id has a live index entry.
func (s *Store) Exists(ctx context.Context, docID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Documents lists the ids of all indexed documents, sorted.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchOne returns up to k chunks of one document scored by normalized
// dot product against the query vector (higher is more similar). A
// missing document yields an empty result. Corrupt vector rows are
// logged and skipped so one bad document never aborts a fan-out search.
func (s *Store) SearchOne(ctx context.Context, docID string, queryVec []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = 10
	}
	query, queryNorm := toFloat64(queryVec)
	if len(query) == 0 || queryNorm == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, chunk_id, title, content, vector FROM chunks WHERE doc_id = ? ORDER BY position`,
		docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ScoredChunk
	for rows.Next() {
		var position int
		var chunkID, title, content, vectorJSON string
		if err := rows.Scan(&position, &chunkID, &title, &content, &vectorJSON); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, docID, err)
		}
		vec, err := decodeVector(vectorJSON)
		if err != nil {
			log.Printf("Skipping corrupt vector for document %s position %d: %v", docID, position, err)
			continue
		}
		hits = append(hits, ScoredChunk{
			Chunk:      Chunk{ID: chunkID, Title: title, Content: content},
			DocumentID: docID,
			Position:   position,
			Score:      dotNormalized(query, vec, queryNorm),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexCorrupt, docID, err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func encodeVector(vec []float64) (string, error) {
	out, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeVector(raw string) ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return vec, nil
}

// normalize converts to float64 and scales to unit length, so stored
// vectors only need a dot product at query time.
func normalize(vec []float32) []float64 {
	out := make([]float64, len(vec))
	var sum float64
	for i, v := range vec {
		f := float64(v)
		out[i] = f
		sum += f * f
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

func toFloat64(vec []float32) ([]float64, float64) {
	out := make([]float64, len(vec))
	var sum float64
	for i, v := range vec {
		f := float64(v)
		out[i] = f
		sum += f * f
	}
	return out, math.Sqrt(sum)
}

func dotNormalized(query, vec []float64, queryNorm float64) float64 {
	if len(query) != len(vec) || queryNorm == 0 {
		return 0
	}
	var dot float64
	for i, v := range vec {
		dot += query[i] * v
	}
	return dot / queryNorm
}
