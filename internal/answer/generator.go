package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Generator produces completion text for a fully assembled prompt.
// The Genkit-backed implementation is the production path; tests swap
// in canned generators.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenkitGenerator calls the configured model through Genkit.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	cfg   any    // provider-specific generation config, may be nil
}

// NewGenkitGenerator creates a generator bound to a model.
func NewGenkitGenerator(g *genkit.Genkit, model string, cfg any) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model, cfg: cfg}
}

// Generate runs a one-shot completion.
func (gg *GenkitGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(gg.model),
		ai.WithPrompt(prompt),
	}
	if gg.cfg != nil {
		opts = append(opts, ai.WithConfig(gg.cfg))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("generate: model returned empty response")
	}
	return text, nil
}
