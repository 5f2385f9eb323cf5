// Package answer synthesizes grounded answers: it assembles the active
// instruction, conversation history, and retrieved context into a
// prompt, calls the model with rate limiting and retry, and records the
// completed turn.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/retrieval"
)

// ErrEmptyQuestion indicates a blank question was submitted.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// ErrGenerationTimeout indicates every model call attempt exceeded its
// per-call deadline.
var ErrGenerationTimeout = errors.New("generation timeout")

// DefaultCallTimeout bounds a single model call when no timeout is
// configured.
const DefaultCallTimeout = 60 * time.Second

// promptTemplate is the synthesis prompt layout. Sections appear in
// fixed order so the model always sees instruction first and the
// question last.
const promptTemplate = `%s

Conversation so far:
%s

Context:
%s

Question: %s
Answer:`

// ContextRetriever resolves a question into grounded context.
type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, opts retrieval.Options) (retrieval.Result, error)
}

// Memory is the conversation surface the synthesizer uses.
type Memory interface {
	Recent(ctx context.Context, conversationID uuid.UUID, window int) ([]conversation.Turn, error)
	AppendTurn(ctx context.Context, conversationID uuid.UUID, userID, question, answer string) (conversation.Turn, error)
}

// InstructionSource supplies the active answer instruction.
type InstructionSource interface {
	ActiveInstruction(ctx context.Context) (string, error)
}

// Answer is a synthesized response.
type Answer struct {
	Text       string
	References []retrieval.Reference
	Turn       conversation.Turn
}

// Synthesizer produces answers for conversation turns.
type Synthesizer struct {
	retriever     ContextRetriever
	memory        Memory
	instructions  InstructionSource
	generator     Generator
	limiter       *rate.Limiter
	retry         RetryConfig
	callTimeout   time.Duration
	historyWindow int
	logger        log.Logger
}

// Config bundles Synthesizer construction parameters.
type Config struct {
	Retriever    ContextRetriever
	Memory       Memory
	Instructions InstructionSource
	Generator    Generator

	// HistoryWindow is the number of prior turns included in the prompt.
	HistoryWindow int

	// Limiter throttles model calls. Nil uses a default of 10 rps.
	Limiter *rate.Limiter

	// Retry overrides retry behavior. Zero value uses DefaultRetryConfig.
	Retry RetryConfig

	// CallTimeout bounds each model call attempt. Non-positive uses
	// DefaultCallTimeout.
	CallTimeout time.Duration

	Logger log.Logger
}

// New creates a Synthesizer.
func New(cfg Config) (*Synthesizer, error) {
	if cfg.Retriever == nil || cfg.Memory == nil || cfg.Instructions == nil || cfg.Generator == nil {
		return nil, fmt.Errorf("retriever, memory, instructions, and generator are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(10, 30)
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Synthesizer{
		retriever:     cfg.Retriever,
		memory:        cfg.Memory,
		instructions:  cfg.Instructions,
		generator:     cfg.Generator,
		limiter:       cfg.Limiter,
		retry:         cfg.Retry,
		callTimeout:   cfg.CallTimeout,
		historyWindow: cfg.HistoryWindow,
		logger:        cfg.Logger,
	}, nil
}

// Synthesize answers a question within a conversation. The turn is
// recorded only after generation succeeds, so a failed call never
// leaves a half-turn in history. Retrieval finding nothing is not a
// failure: the model still runs with the sentinel context and can
// answer from conversation history or decline.
func (s *Synthesizer) Synthesize(ctx context.Context, conversationID uuid.UUID, userID, question string, opts retrieval.Options) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	instruction, err := s.instructions.ActiveInstruction(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("loading instruction: %w", err)
	}

	turns, err := s.memory.Recent(ctx, conversationID, s.historyWindow)
	if err != nil {
		return Answer{}, fmt.Errorf("loading history: %w", err)
	}

	retrieved, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := buildPrompt(instruction, turns, retrieved.Context, question)

	text, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}

	if len(retrieved.References) > 0 {
		text += formatSources(retrieved.References)
	}

	turn, err := s.memory.AppendTurn(ctx, conversationID, userID, question, text)
	if err != nil {
		return Answer{}, fmt.Errorf("recording turn: %w", err)
	}

	s.logger.Info("answer synthesized",
		"conversation_id", conversationID,
		"grounded", retrieved.Found,
		"references", len(retrieved.References))

	return Answer{Text: text, References: retrieved.References, Turn: turn}, nil
}

// buildPrompt renders the synthesis prompt.
func buildPrompt(instruction string, turns []conversation.Turn, context, question string) string {
	history := "(none)"
	if len(turns) > 0 {
		var b strings.Builder
		for _, t := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Question, t.Answer)
		}
		history = strings.TrimRight(b.String(), "\n")
	}
	return fmt.Sprintf(promptTemplate, instruction, history, context, question)
}

// formatSources renders the references block appended to answers.
func formatSources(refs []retrieval.Reference) string {
	var b strings.Builder
	b.WriteString("\n\nSources:\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "- %s (%s)\n", r.Title, r.Origin)
	}
	return strings.TrimRight(b.String(), "\n")
}
