// Package conversation persists chat history so the synthesizer can
// condition answers on prior turns.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docent-ai/docent/internal/log"
)

// ErrConversationNotFound indicates the conversation id does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

// Conversation is a chat thread owned by a user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one question/answer exchange.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	CreatedAt      time.Time `json:"created_at"`
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists conversations and turns in PostgreSQL.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Start creates a new conversation for userID.
func (s *Store) Start(ctx context.Context, userID, title string) (Conversation, error) {
	c := Conversation{ID: uuid.New(), UserID: userID, Title: title}

	err := s.db.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		c.ID, userID, title).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation started", "conversation_id", c.ID, "user_id", userID)
	return c, nil
}

// Get returns a conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("loading conversation: %w", err)
	}
	return c, nil
}

// List returns a user's conversations, most recently active first.
func (s *Store) List(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var cs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return cs, nil
}

// AppendTurn records a completed question/answer exchange and bumps the
// conversation's activity timestamp.
func (s *Store) AppendTurn(ctx context.Context, conversationID uuid.UUID, userID, question, answer string) (Turn, error) {
	t := Turn{ConversationID: conversationID, UserID: userID, Question: question, Answer: answer}

	err := s.db.QueryRow(ctx, `
		INSERT INTO chat_history (conversation_id, user_id, question, answer)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		conversationID, userID, question, answer).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Turn{}, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return Turn{}, fmt.Errorf("recording turn: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, conversationID); err != nil {
		s.logger.Warn("failed to bump conversation activity",
			"conversation_id", conversationID, "error", err)
	}
	return t, nil
}

// Recent returns the last window turns of a conversation in oldest-first
// order, ready for prompt assembly. window <= 0 returns nothing.
func (s *Store) Recent(ctx context.Context, conversationID uuid.UUID, window int) ([]Turn, error) {
	if window <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, user_id, question, answer, created_at
		FROM (
			SELECT id, conversation_id, user_id, question, answer, created_at
			FROM chat_history
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2
		) latest
		ORDER BY id`, conversationID, window)
	if err != nil {
		return nil, fmt.Errorf("loading recent turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// History returns every turn of a conversation oldest-first.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, user_id, question, answer, created_at
		FROM chat_history
		WHERE conversation_id = $1
		ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// Delete removes a conversation and, via cascade, its turns.
func (s *Store) Delete(ctx context.Context, conversationID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.UserID,
			&t.Question, &t.Answer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
