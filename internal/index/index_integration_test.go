package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/testutil"
)

// oneHot builds a deterministic unit vector: cosine similarity is 1.0
// between identical vectors and 0.0 between different ones.
func oneHot(i int) []float32 {
	v := make([]float32, VectorDimension)
	v[i%VectorDimension] = 1
	return v
}

func chunkFixture(title string, seq int, content string, axis int) Chunk {
	return Chunk{
		ID:        fmt.Sprintf("%s#%d", title, seq),
		Title:     title,
		Origin:    title + ".txt",
		Seq:       seq,
		Content:   content,
		Embedding: oneHot(axis),
	}
}

func TestStore_UpsertAndSearch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	chunks := []Chunk{
		chunkFixture("handbook", 0, "Widgets need quarterly lubrication.", 0),
		chunkFixture("handbook", 1, "Calibration drift above two percent is a failure.", 1),
	}
	require.NoError(t, store.Upsert(ctx, "handbook", "handbook.txt", chunks))

	matches, err := store.Search(ctx, oneHot(0), 3, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 1, "orthogonal chunk must fall below threshold")
	assert.Equal(t, "handbook#0", matches[0].Chunk.ID)
	assert.Equal(t, "Widgets need quarterly lubrication.", matches[0].Chunk.Content)
	assert.InDelta(t, 1.0, matches[0].Score, 0.001)

	// Threshold 0 returns both, best first.
	matches, err = store.Search(ctx, oneHot(0), 3, 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "handbook#0", matches[0].Chunk.ID)
}

func TestStore_UpsertReplacesChunks_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	require.NoError(t, store.Upsert(ctx, "notes", "notes.txt", []Chunk{
		chunkFixture("notes", 0, "old content", 0),
		chunkFixture("notes", 1, "old tail", 1),
	}))
	require.NoError(t, store.Upsert(ctx, "notes", "notes-v2.txt", []Chunk{
		chunkFixture("notes", 0, "new content", 0),
	}))

	infos, err := store.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "notes", infos[0].Title)
	assert.Equal(t, "notes-v2.txt", infos[0].Origin)
	assert.Equal(t, 1, infos[0].ChunkCount)

	matches, err := store.Search(ctx, oneHot(0), 5, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new content", matches[0].Chunk.Content)
}

func TestStore_DeleteByTitle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	require.NoError(t, store.Upsert(ctx, "ephemeral", "e.txt", []Chunk{
		chunkFixture("ephemeral", 0, "gone soon", 0),
	}))

	removed, err := store.DeleteByTitle(ctx, "EPHEMERAL")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	matches, err := store.Search(ctx, oneHot(0), 5, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = store.DeleteByTitle(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = store.DeleteByTitle(ctx, "never existed")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestStore_ConcurrentUpsertsSameTitle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Upsert(ctx, "contended", "c.txt", []Chunk{
				chunkFixture("contended", 0, fmt.Sprintf("version %d", i), i),
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	// The advisory lock serializes writers: exactly one version survives.
	infos, err := store.AllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].ChunkCount)

	var n int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestStore_ConcurrentUpsertAndDelete_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	require.NoError(t, store.Upsert(ctx, "contended", "c.txt", []Chunk{
		chunkFixture("contended", 0, "initial", 0),
	}))

	// Writers re-ingest under mixed-case titles while deleters race;
	// the case-folded advisory lock serializes all of them.
	const rounds = 8
	var wg sync.WaitGroup
	for i := range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Upsert(ctx, "CONTENDED", "c.txt", []Chunk{
				chunkFixture("CONTENDED", 0, fmt.Sprintf("version %d", i), i),
			})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.DeleteByTitle(ctx, "contended")
		}()
	}
	wg.Wait()

	// Whatever interleaving won, metadata and chunks must agree: a
	// document row exists exactly when its chunks do.
	var docs, chunks int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE LOWER(title) = 'contended'`).Scan(&docs))
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE LOWER(title) = 'contended'`).Scan(&chunks))
	if docs == 0 {
		assert.Equal(t, 0, chunks, "chunks without a document row")
	} else {
		assert.Equal(t, 1, docs)
		assert.Equal(t, 1, chunks, "document row without its chunks")
	}
}

func TestStore_Count_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.Upsert(ctx, "a", "a.txt", []Chunk{chunkFixture("a", 0, "x", 0)}))
	require.NoError(t, store.Upsert(ctx, "b", "b.txt", []Chunk{chunkFixture("b", 0, "y", 1)}))

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
