// Package observability wires OpenTelemetry trace export into Genkit's
// tracer provider.
//
// Genkit instruments model and embedder calls with OTel spans on its own
// TracerProvider; registering an OTLP HTTP exporter there is all that is
// needed to ship ingestion and synthesis traces to a local collector
// (or any agent speaking OTLP on 4318).
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultAgentHost is the default OTLP HTTP endpoint.
const DefaultAgentHost = "localhost:4318"

// Config for trace export.
type Config struct {
	// AgentHost is the OTLP HTTP endpoint (default: localhost:4318).
	AgentHost string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
	// ServiceName is the service name attached to exported spans.
	ServiceName string
}

// Setup registers an OTLP exporter with Genkit's TracerProvider and
// returns a shutdown function that flushes pending spans. Export setup
// failure degrades to no tracing rather than failing startup.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	// Genkit's TracerProvider reads service identity from the standard
	// OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // local agent endpoint, no TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tracing.TracerProvider().Shutdown, nil
}
