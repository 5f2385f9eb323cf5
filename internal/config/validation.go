package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// validSSLModes matches libpq sslmode options.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate checks the configuration for invalid values.
// Fail-fast: returns the first error encountered.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateIngestion(); err != nil {
		return err
	}
	return c.validatePostgres()
}

func (c *Config) validateAI() error {
	switch c.Provider {
	case ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host is required for provider %q", ErrInvalidOllamaHost, c.Provider)
		}
		if !strings.HasPrefix(c.OllamaHost, "http://") && !strings.HasPrefix(c.OllamaHost, "https://") {
			return fmt.Errorf("%w: %q must start with http:// or https://", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)", ErrInvalidProvider, c.Provider, ProviderGoogleAI, ProviderOllama)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (valid range: 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}
	if c.ServiceTimeout <= 0 {
		return fmt.Errorf("%w: service_timeout must be positive, got %v", ErrInvalidServiceTimeout, c.ServiceTimeout)
	}
	return nil
}

func (c *Config) validateIngestion() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunkPolicy, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunkPolicy, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunkPolicy, c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidRetrieval, c.TopK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score_threshold %.2f (valid range: 0.0-1.0)", ErrInvalidRetrieval, c.ScoreThreshold)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("%w: history_window cannot be negative, got %d", ErrInvalidRetrieval, c.HistoryWindow)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (valid range: 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidPostgresPassword)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (valid: %s)", ErrInvalidPostgresSSLMode,
			c.PostgresSSLMode, strings.Join(validSSLModes, ", "))
	}
	return nil
}
