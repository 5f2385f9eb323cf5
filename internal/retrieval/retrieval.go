// Package retrieval turns a question into grounded context: it embeds
// the question, searches the index, and assembles the matched chunks
// into a context block with provenance references.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/log"
)

// NoInformationFound is the sentinel placed in the context slot when no
// chunk clears the similarity threshold. The synthesizer still runs so
// the model can answer from conversation history or say it does not know.
const NoInformationFound = "No relevant information was found in the knowledge base."

// Searcher is the index query surface the retriever depends on.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, threshold float32) ([]index.Match, error)
}

// QueryEmbedder embeds a single question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reference identifies a source document that contributed context.
// Score is the best similarity among the document's matched chunks.
type Reference struct {
	Title  string  `json:"title"`
	Origin string  `json:"origin"`
	Score  float32 `json:"relevance_score"`
}

// Result is retrieved context ready for prompt assembly.
type Result struct {
	// Context is the joined chunk text, or NoInformationFound when
	// nothing matched.
	Context string

	// References lists contributing documents in match order, deduplicated.
	References []Reference

	// Found reports whether any chunk cleared the threshold.
	Found bool
}

// Options overrides the retriever's configured policy for a single
// question. A zero TopK or nil Threshold keeps the configured default.
type Options struct {
	TopK      int
	Threshold *float32
}

// Retriever resolves questions against the vector index.
type Retriever struct {
	embedder  QueryEmbedder
	searcher  Searcher
	topK      int
	threshold float32
	logger    log.Logger
}

// New creates a Retriever with a fixed retrieval policy.
func New(embedder QueryEmbedder, searcher Searcher, topK int, threshold float32, logger log.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		topK:      topK,
		threshold: threshold,
		logger:    logger,
	}
}

// Retrieve embeds the question and returns the assembled context.
// An empty result set is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts Options) (Result, error) {
	topK := r.topK
	if opts.TopK > 0 {
		topK = opts.TopK
	}
	threshold := r.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	embedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := r.searcher.Search(ctx, embedding, topK, threshold)
	if err != nil {
		return Result{}, fmt.Errorf("searching index: %w", err)
	}

	if len(matches) == 0 {
		r.logger.Info("retrieval found nothing above threshold",
			"top_k", topK, "threshold", threshold)
		return Result{Context: NoInformationFound}, nil
	}

	var blocks []string
	var refs []Reference
	seen := make(map[string]struct{})
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf("Source: %s (%s)\n%s",
			m.Chunk.Title, m.Chunk.Origin, m.Chunk.Content))
		// Matches arrive score-descending, so the first chunk seen for a
		// document carries its best score.
		if _, ok := seen[m.Chunk.Title]; !ok {
			seen[m.Chunk.Title] = struct{}{}
			refs = append(refs, Reference{Title: m.Chunk.Title, Origin: m.Chunk.Origin, Score: m.Score})
		}
	}

	r.logger.Info("retrieval complete", "matches", len(matches), "documents", len(refs))
	return Result{
		Context:    strings.Join(blocks, "\n\n"),
		References: refs,
		Found:      true,
	}, nil
}
