// Package index persists chunk embeddings and document metadata in
// PostgreSQL with pgvector.
//
// Two tables back the index: documents carries per-document metadata,
// chunks carries content and embeddings. Search runs cosine similarity
// over the chunks table; writes serialize per document title with an
// advisory lock so concurrent re-ingestion of the same title cannot
// interleave.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/docent-ai/docent/internal/log"
)

// VectorDimension is the embedding width declared in the schema.
const VectorDimension = 768

var (
	// ErrDocumentNotFound indicates no document with the given title exists.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrPartialDelete indicates chunk vectors were removed but the
	// document metadata row remains. The index stays queryable; the
	// stale metadata row is visible in listings until a retry succeeds.
	ErrPartialDelete = errors.New("partial delete: metadata not removed")

	// ErrDimensionMismatch indicates a chunk embedding does not match
	// the schema's vector width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Chunk is one indexed unit of a document.
type Chunk struct {
	ID        string
	Title     string
	Origin    string
	Seq       int
	Content   string
	Embedding []float32
}

// Match is a search hit with its cosine similarity score in [0, 1].
type Match struct {
	Chunk Chunk
	Score float32
}

// DocumentInfo is document-level metadata for listings.
type DocumentInfo struct {
	Title      string    `json:"title"`
	Origin     string    `json:"origin"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the pgvector-backed index.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Upsert replaces the indexed content of a document in one transaction:
// the document row is inserted or updated, existing chunks are dropped,
// and the new chunks inserted. The per-title advisory lock serializes
// concurrent upserts and deletes of the same title.
func (s *Store) Upsert(ctx context.Context, title, origin string, chunks []Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != VectorDimension {
			return fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), VectorDimension)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The lock key is case-folded to match deletion's case-insensitive
	// title matching, so writers for "Doc1" and "doc1" serialize too.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(LOWER($1)))`, title); err != nil {
		return fmt.Errorf("acquiring title lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO documents (title, origin, chunk_count, ingested_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (title) DO UPDATE
		SET origin = EXCLUDED.origin,
		    chunk_count = EXCLUDED.chunk_count,
		    ingested_at = EXCLUDED.ingested_at`,
		title, origin, len(chunks)); err != nil {
		return fmt.Errorf("upserting document %q: %w", title, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE title = $1`, title); err != nil {
		return fmt.Errorf("clearing chunks for %q: %w", title, err)
	}

	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, title, origin, seq, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, title, origin, c.Seq, c.Content, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert for %q: %w", title, err)
	}

	s.logger.Info("document indexed", "title", title, "chunks", len(chunks))
	return nil
}

// Search returns the topK chunks most similar to the query embedding,
// keeping only matches at or above threshold. Results are ordered by
// descending similarity with chunk id as tiebreaker, so equal scores
// return in a stable order.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, threshold float32) ([]Match, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, title, origin, seq, content, 1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`,
		pgvector.NewVector(embedding), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var score float64
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.Title, &m.Chunk.Origin,
			&m.Chunk.Seq, &m.Chunk.Content, &score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// DeleteByTitle removes a document's chunks, then its metadata row,
// matching the title case-insensitively. Returns the number of chunks
// removed. The phases run as separate transactions, each holding the
// same per-title advisory lock Upsert takes, so a delete never
// interleaves with a concurrent re-ingestion of the title. A failure
// after the chunks are gone reports ErrPartialDelete so the caller
// knows a stale metadata row remains, while the searchable index is
// already clean.
func (s *Store) DeleteByTitle(ctx context.Context, title string) (int, error) {
	removed, err := s.deleteChunks(ctx, title)
	if err != nil {
		return 0, err
	}

	if err := s.deleteMetadata(ctx, title); err != nil {
		return removed, err
	}

	s.logger.Info("document deleted", "title", title, "chunks", removed)
	return removed, nil
}

// deleteChunks removes the document's vectors under the title lock.
func (s *Store) deleteChunks(ctx context.Context, title string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning chunk delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(LOWER($1)))`, title); err != nil {
		return 0, fmt.Errorf("acquiring title lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE LOWER(title) = LOWER($1))`, title).Scan(&exists); err != nil {
		return 0, fmt.Errorf("checking document %q: %w", title, err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %q", ErrDocumentNotFound, title)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM chunks WHERE LOWER(title) = LOWER($1)`, title)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %q: %w", title, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing chunk delete for %q: %w", title, err)
	}
	return int(tag.RowsAffected()), nil
}

// deleteMetadata removes the document row under the title lock. Any
// failure here is a partial delete: the chunks are already gone.
func (s *Store) deleteMetadata(ctx context.Context, title string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPartialDelete, title, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(LOWER($1)))`, title); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPartialDelete, title, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE LOWER(title) = LOWER($1)`, title)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPartialDelete, title, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPartialDelete, title, err)
	}
	if tag.RowsAffected() == 0 {
		// Raced with another delete; vectors and metadata are both gone.
		return fmt.Errorf("%w: %q", ErrDocumentNotFound, title)
	}
	return nil
}

// AllMetadata lists every indexed document ordered by title.
func (s *Store) AllMetadata(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT title, origin, chunk_count, ingested_at
		FROM documents
		ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var infos []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		if err := rows.Scan(&info.Title, &info.Origin, &info.ChunkCount, &info.IngestedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return infos, nil
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
