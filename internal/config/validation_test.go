package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes validation when
// GEMINI_API_KEY is set.
func validConfig() *Config {
	return &Config{
		Provider:         ProviderGoogleAI,
		ModelName:        "gemini-2.5-flash",
		Temperature:      0.7,
		EmbedderModel:    DefaultEmbedderModel,
		ServiceTimeout:   DefaultServiceTimeout,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		TopK:             DefaultTopK,
		ScoreThreshold:   DefaultScoreThreshold,
		HistoryWindow:    DefaultHistoryWindow,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "docent",
		PostgresPassword: "secret",
		PostgresDBName:   "docent",
		PostgresSSLMode:  "disable",
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid googleai config",
			mutate: func(*Config) {},
		},
		{
			name: "valid ollama config",
			mutate: func(c *Config) {
				c.Provider = ProviderOllama
				c.OllamaHost = "http://localhost:11434"
				c.ModelName = "llama3.3"
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "openai" },
			wantErr: ErrInvalidProvider,
		},
		{
			name: "ollama without host",
			mutate: func(c *Config) {
				c.Provider = ProviderOllama
				c.OllamaHost = ""
			},
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name: "ollama host without scheme",
			mutate: func(c *Config) {
				c.Provider = ProviderOllama
				c.OllamaHost = "localhost:11434"
			},
			wantErr: ErrInvalidOllamaHost,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "temperature too high",
			mutate:  func(c *Config) { c.Temperature = 2.5 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "negative temperature",
			mutate:  func(c *Config) { c.Temperature = -0.1 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "zero chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: ErrInvalidChunkPolicy,
		},
		{
			name:    "negative chunk overlap",
			mutate:  func(c *Config) { c.ChunkOverlap = -1 },
			wantErr: ErrInvalidChunkPolicy,
		},
		{
			name: "overlap equal to chunk size",
			mutate: func(c *Config) {
				c.ChunkSize = 100
				c.ChunkOverlap = 100
			},
			wantErr: ErrInvalidChunkPolicy,
		},
		{
			name:    "zero service_timeout",
			mutate:  func(c *Config) { c.ServiceTimeout = 0 },
			wantErr: ErrInvalidServiceTimeout,
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.ScoreThreshold = 1.5 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "negative history window",
			mutate:  func(c *Config) { c.HistoryWindow = -1 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "empty password",
			mutate:  func(c *Config) { c.PostgresPassword = "" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "invalid ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "maybe" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() = %v, want %v", err, ErrConfigNil)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg := validConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Validate() = %v, want %v", err, ErrMissingAPIKey)
	}
}
