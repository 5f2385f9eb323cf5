// Package embed wraps a Genkit embedder behind a small provider with
// dimension validation and service error classification.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/docent-ai/docent/internal/log"
)

// Dimension is the embedding width stored in the index. The database
// schema declares vector(768); every provider must be configured to
// produce exactly this width.
const Dimension = 768

// DefaultTimeout bounds a single embedding call when no timeout is
// configured. Every call carries a deadline; a stalled backend surfaces
// ErrServiceTimeout instead of blocking the request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNoBackend indicates no embedding backend was configured.
	ErrNoBackend = errors.New("no embedding backend configured")

	// ErrEmbeddingService indicates the embedding backend failed.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrServiceTimeout indicates the embedding call exceeded its deadline.
	ErrServiceTimeout = errors.New("embedding service timeout")

	// ErrDimensionMismatch indicates the backend returned vectors of an
	// unexpected width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider computes embeddings through a Genkit ai.Embedder.
type Provider struct {
	embedder ai.Embedder
	opts     any // backend-specific embed options (e.g. output dimensionality)
	timeout  time.Duration
	logger   log.Logger
}

// New creates a Provider. A nil embedder is a configuration error
// surfaced at startup, not on first use. A non-positive timeout falls
// back to DefaultTimeout.
func New(embedder ai.Embedder, opts any, timeout time.Duration, logger log.Logger) (*Provider, error) {
	if embedder == nil {
		return nil, ErrNoBackend
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Provider{embedder: embedder, opts: opts, timeout: timeout, logger: logger}, nil
}

// Embed returns one vector per input text, in input order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: p.opts,
	})
	if err != nil {
		return nil, p.classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrEmbeddingService, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) != Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d",
				ErrDimensionMismatch, len(e.Embedding), Dimension)
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single question for retrieval.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *Provider) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrServiceTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	p.logger.Error("embedding call failed", "error", err)
	return fmt.Errorf("%w: %w", ErrEmbeddingService, err)
}
