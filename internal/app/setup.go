package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"

	"github.com/docent-ai/docent/db"
	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/database"
	"github.com/docent-ai/docent/internal/document"
	"github.com/docent-ai/docent/internal/embed"
	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/observability"
	"github.com/docent-ai/docent/internal/prompt"
	"github.com/docent-ai/docent/internal/retrieval"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	provider, err := embed.New(embedder, provideEmbedOptions(cfg), cfg.ServiceTimeout, logger)
	if err != nil {
		return nil, err
	}

	a.Index = index.New(pool, logger)

	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	spool, err := document.NewSpool(cfg.SpoolDir)
	if err != nil {
		return nil, err
	}

	fetcher := document.NewFetcher(logger)
	a.Ingest = ingest.New(fetcher, spool, splitter, provider, a.Index, logger)

	a.Retriever = retrieval.New(provider, a.Index, cfg.TopK, cfg.ScoreThreshold, logger)
	a.Conversations = conversation.New(pool, logger)
	a.Prompts = prompt.New(pool, logger)

	synth, err := answer.New(answer.Config{
		Retriever:     a.Retriever,
		Memory:        a.Conversations,
		Instructions:  a.Prompts,
		Generator:     answer.NewGenkitGenerator(g, provideModelName(cfg), provideGenerationConfig(cfg)),
		CallTimeout:   cfg.ServiceTimeout,
		HistoryWindow: cfg.HistoryWindow,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	a.Synthesizer = synth

	return a, nil
}

// provideOtelShutdown sets up trace export before Genkit initialization
// so the TracerProvider is ready when Genkit starts creating spans.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Tracing.AgentHost,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("tracing setup failed, continuing without tracing", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, err
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit)
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideEmbedOptions pins the embedding width to the index schema.
// Gemini embedding models default to wider vectors and must be asked to
// truncate; Ollama embedding models are chosen to be 768-wide natively.
func provideEmbedOptions(cfg *config.Config) any {
	if cfg.Provider == config.ProviderOllama {
		return nil
	}
	return &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(embed.Dimension)),
	}
}

// provideModelName returns the provider-qualified model name used for
// generation.
func provideModelName(cfg *config.Config) string {
	return cfg.Provider + "/" + cfg.ModelName
}

// provideGenerationConfig returns provider-specific generation config.
func provideGenerationConfig(cfg *config.Config) any {
	if cfg.Provider == config.ProviderOllama {
		return nil
	}
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
}
