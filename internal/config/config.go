// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docent/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider selection, model, temperature, embedder
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k, similarity threshold, chunking policy
//   - Tracing: OTLP agent endpoint (optional)
//
// Security: sensitive data (passwords) is masked in MarshalJSON and never logged.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidServiceTimeout indicates the outbound call timeout is invalid.
	ErrInvalidServiceTimeout = errors.New("invalid service timeout")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidChunkPolicy indicates chunk size/overlap values are out of range.
	ErrInvalidChunkPolicy = errors.New("invalid chunk policy")

	// ErrInvalidRetrieval indicates retrieval top-k or threshold is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval settings")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
// Provider selection is an explicit configuration choice resolved at startup;
// presence of an API key alone never selects a backend.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (index.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the default chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default overlap between consecutive chunks.
	DefaultChunkOverlap = 100

	// DefaultTopK is the default number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultScoreThreshold is the default minimum cosine similarity for a
	// retrieved chunk to be included in context.
	DefaultScoreThreshold = 0.7

	// DefaultHistoryWindow is the default number of prior turns injected
	// into the answer prompt.
	DefaultHistoryWindow = 10

	// DefaultServiceTimeout bounds a single outbound embedding or model
	// call.
	DefaultServiceTimeout = 60 * time.Second
)

// TracingConfig holds OTLP trace export settings.
// Tracing is disabled unless Enabled is set.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "googleai" (default) or "ollama"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Per-call deadline for outbound embedding and model calls
	ServiceTimeout time.Duration `mapstructure:"service_timeout" json:"service_timeout"`

	// Ingestion chunking policy
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Retrieval policy
	TopK           int     `mapstructure:"top_k" json:"top_k"`
	ScoreThreshold float32 `mapstructure:"score_threshold" json:"score_threshold"`
	HistoryWindow  int     `mapstructure:"history_window" json:"history_window"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Upload spool directory for transient file buffering
	SpoolDir string `mapstructure:"spool_dir" json:"spool_dir"`

	// Observability (see TracingConfig)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("service_timeout", DefaultServiceTimeout)

	// Chunking defaults
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)

	// Retrieval defaults
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("score_threshold", DefaultScoreThreshold)
	v.SetDefault("history_window", DefaultHistoryWindow)

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docent")
	v.SetDefault("postgres_password", "docent_dev_password")
	v.SetDefault("postgres_db_name", "docent")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("spool_dir", filepath.Join(os.TempDir(), "docent-spool"))

	// Tracing defaults (disabled)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.agent_host", "localhost:4318")
	v.SetDefault("tracing.environment", "dev")
	v.SetDefault("tracing.service_name", "docent")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate()
// checks its presence when the googleai provider is selected.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DOCENT_PROVIDER")
	mustBind("model_name", "DOCENT_MODEL_NAME")
	mustBind("embedder_model", "DOCENT_EMBEDDER_MODEL")
	mustBind("ollama_host", "DOCENT_OLLAMA_HOST")
	mustBind("listen_addr", "DOCENT_LISTEN_ADDR")
	mustBind("postgres_password", "DOCENT_POSTGRES_PASSWORD")
	mustBind("tracing.enabled", "DOCENT_TRACING")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets show
// the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursive MarshalJSON
	masked := alias(*c)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	return json.Marshal(masked)
}
