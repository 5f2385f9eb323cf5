package prompt

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

func TestStore_CRUD_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	created, err := store.Create(ctx, "support", "Answer politely.", "admin")
	require.NoError(t, err)
	assert.False(t, created.IsActive, "new prompts start inactive")

	_, err = store.Create(ctx, "support", "duplicate", "admin")
	assert.ErrorIs(t, err, ErrDuplicateName)

	updated, err := store.Update(ctx, created.ID, "support-v2", "Answer concisely.", "editor")
	require.NoError(t, err)
	assert.Equal(t, "support-v2", updated.Name)
	assert.Equal(t, "editor", updated.UpdatedBy)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Answer concisely.", got.Text)

	_, err = store.Get(ctx, 99999)
	assert.ErrorIs(t, err, ErrPromptNotFound)

	require.NoError(t, store.Delete(ctx, created.ID))
	assert.ErrorIs(t, store.Delete(ctx, created.ID), ErrPromptNotFound)
}

func TestStore_ActivationInvariant_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	a, err := store.Create(ctx, "prompt-a", "instruction a", "admin")
	require.NoError(t, err)
	b, err := store.Create(ctx, "prompt-b", "instruction b", "admin")
	require.NoError(t, err)

	require.NoError(t, store.Activate(ctx, a.ID, "admin"))

	text, err := store.ActiveInstruction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "instruction a", text)

	// Activating b flips a off in the same transaction.
	require.NoError(t, store.Activate(ctx, b.ID, "admin"))

	text, err = store.ActiveInstruction(ctx)
	require.NoError(t, err)
	assert.Equal(t, "instruction b", text)

	var active int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM llm_prompts WHERE is_active`).Scan(&active))
	assert.Equal(t, 1, active)

	assert.ErrorIs(t, store.Activate(ctx, 99999, "admin"), ErrPromptNotFound)
}

func TestStore_DefaultInstructionFallback_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	// No prompts at all.
	text, err := store.ActiveInstruction(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInstruction, text)

	// A stored but inactive prompt does not change that.
	p, err := store.Create(ctx, "dormant", "unused instruction", "admin")
	require.NoError(t, err)

	text, err = store.ActiveInstruction(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInstruction, text)

	// Activating then deleting the prompt restores the default.
	require.NoError(t, store.Activate(ctx, p.ID, "admin"))
	require.NoError(t, store.Delete(ctx, p.ID))

	text, err = store.ActiveInstruction(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInstruction, text)
}

func TestStore_ConcurrentActivations_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())

	var ids []int64
	for i := range 5 {
		p, err := store.Create(ctx, fmt.Sprintf("prompt-%d", i), fmt.Sprintf("instruction %d", i), "admin")
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Serialization conflicts under concurrency surface as
			// errors at most; the invariant below is what matters.
			_ = store.Activate(ctx, id, "admin")
		}()
	}
	wg.Wait()

	var active int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM llm_prompts WHERE is_active`).Scan(&active))
	assert.LessOrEqual(t, active, 1, "at most one prompt may end up active")
}
