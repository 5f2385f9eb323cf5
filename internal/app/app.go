// Package app assembles the application: configuration, database,
// Genkit, and the ingestion and answering pipelines.
package app

import (
	"errors"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/prompt"
	"github.com/docent-ai/docent/internal/retrieval"
)

// App holds all initialized components. Create with Setup, release with
// Close.
type App struct {
	Config *config.Config
	Logger log.Logger
	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Index         *index.Store
	Ingest        *ingest.Service
	Retriever     *retrieval.Retriever
	Conversations *conversation.Store
	Prompts       *prompt.Store
	Synthesizer   *answer.Synthesizer

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse initialization order. Safe to
// call multiple times and on a partially initialized App.
func (a *App) Close() error {
	var errs []error

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return errors.Join(errs...)
}
