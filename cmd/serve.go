package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/docent-ai/docent/api"
	"github.com/docent-ai/docent/internal/app"
	"github.com/docent-ai/docent/internal/config"
)

// readyTimeout bounds the database probe behind /ready.
const readyTimeout = 2 * time.Second

// runServe initializes the application and starts the HTTP API server.
func runServe() error {
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting docent", "version", AppVersion)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Answerer:      a.Synthesizer,
		Conversations: a.Conversations,
		Ingester:      a.Ingest,
		Prompts:       a.Prompts,
		Ready: func(r *http.Request) error {
			probeCtx, probeCancel := context.WithTimeout(r.Context(), readyTimeout)
			defer probeCancel()
			if err := a.DBPool.Ping(probeCtx); err != nil {
				return err
			}
			// Counting documents proves the migrated schema is present,
			// not just that the database accepts connections.
			_, err := a.Index.Count(probeCtx)
			return err
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	return srv.Run(ctx, addr)
}
