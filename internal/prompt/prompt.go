// Package prompt manages stored answer instructions. At most one prompt
// is active at a time; when none is, a built-in default instruction
// applies.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docent-ai/docent/internal/log"
)

// DefaultInstruction is used when no stored prompt is active.
const DefaultInstruction = "You are a helpful assistant. Answer the question using the provided context. " +
	"If the context does not contain the answer, say you do not know rather than guessing."

var (
	// ErrPromptNotFound indicates no prompt with the given id exists.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrDuplicateName indicates a prompt with the same name already exists.
	ErrDuplicateName = errors.New("prompt name already exists")
)

// Prompt is a stored answer instruction.
type Prompt struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	IsActive  bool      `json:"is_active"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists prompts in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Create stores a new, inactive prompt.
func (s *Store) Create(ctx context.Context, name, text, createdBy string) (Prompt, error) {
	p := Prompt{Name: name, Text: text, CreatedBy: createdBy, UpdatedBy: createdBy}

	err := s.db.QueryRow(ctx, `
		INSERT INTO llm_prompts (name, prompt_text, created_by, updated_by)
		VALUES ($1, $2, $3, $3)
		RETURNING id, created_at, updated_at`,
		name, text, createdBy).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Prompt{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		return Prompt{}, fmt.Errorf("creating prompt: %w", err)
	}

	s.logger.Info("prompt created", "prompt_id", p.ID, "name", name)
	return p, nil
}

// Get returns a prompt by id.
func (s *Store) Get(ctx context.Context, id int64) (Prompt, error) {
	var p Prompt
	err := s.db.QueryRow(ctx, `
		SELECT id, name, prompt_text, is_active, created_by, updated_by, created_at, updated_at
		FROM llm_prompts WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Text, &p.IsActive, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prompt{}, fmt.Errorf("%w: id %d", ErrPromptNotFound, id)
	}
	if err != nil {
		return Prompt{}, fmt.Errorf("loading prompt: %w", err)
	}
	return p, nil
}

// List returns all prompts ordered by name.
func (s *Store) List(ctx context.Context) ([]Prompt, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, prompt_text, is_active, created_by, updated_by, created_at, updated_at
		FROM llm_prompts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	var ps []Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Text, &p.IsActive,
			&p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prompts: %w", err)
	}
	return ps, nil
}

// Update changes a prompt's name and text.
func (s *Store) Update(ctx context.Context, id int64, name, text, updatedBy string) (Prompt, error) {
	var p Prompt
	err := s.db.QueryRow(ctx, `
		UPDATE llm_prompts
		SET name = $2, prompt_text = $3, updated_by = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, name, prompt_text, is_active, created_by, updated_by, created_at, updated_at`,
		id, name, text, updatedBy).
		Scan(&p.ID, &p.Name, &p.Text, &p.IsActive, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prompt{}, fmt.Errorf("%w: id %d", ErrPromptNotFound, id)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return Prompt{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		return Prompt{}, fmt.Errorf("updating prompt: %w", err)
	}
	return p, nil
}

// Delete removes a prompt. Deleting the active prompt leaves no prompt
// active, so the default instruction takes over.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM llm_prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrPromptNotFound, id)
	}
	return nil
}

// Activate makes the given prompt the single active one. The deactivate
// and activate steps share a transaction so the at-most-one-active
// invariant holds even under concurrent activations.
func (s *Store) Activate(ctx context.Context, id int64, updatedBy string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`UPDATE llm_prompts SET is_active = false, updated_at = now() WHERE is_active`); err != nil {
		return fmt.Errorf("deactivating prompts: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE llm_prompts
		SET is_active = true, updated_by = $2, updated_at = now()
		WHERE id = $1`, id, updatedBy)
	if err != nil {
		return fmt.Errorf("activating prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrPromptNotFound, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing activation: %w", err)
	}

	s.logger.Info("prompt activated", "prompt_id", id)
	return nil
}

// Deactivate clears the active flag on the given prompt.
func (s *Store) Deactivate(ctx context.Context, id int64, updatedBy string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE llm_prompts
		SET is_active = false, updated_by = $2, updated_at = now()
		WHERE id = $1`, id, updatedBy)
	if err != nil {
		return fmt.Errorf("deactivating prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrPromptNotFound, id)
	}
	return nil
}

// ActiveInstruction returns the active prompt's text, or
// DefaultInstruction when no prompt is active.
func (s *Store) ActiveInstruction(ctx context.Context) (string, error) {
	var text string
	err := s.db.QueryRow(ctx,
		`SELECT prompt_text FROM llm_prompts WHERE is_active`).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultInstruction, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading active prompt: %w", err)
	}
	return text, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
