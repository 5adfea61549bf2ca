// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.civiq/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder selection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingestion: chunk size/overlap, embedding batch size and delay
//   - Retrieval: per-entity similarity thresholds, result limits, timeouts
//
// Sensitive data (passwords) are never logged; see MarshalJSON.
// Validation is fail-fast with sentinel errors usable via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder vector dimension is invalid.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidBatching indicates embedding batch parameters are out of range.
	ErrInvalidBatching = errors.New("invalid embedding batch parameters")

	// ErrInvalidThreshold indicates a similarity threshold is out of [0,1].
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidTopK indicates a per-entity result limit is out of range.
	ErrInvalidTopK = errors.New("invalid result limit")

	// ErrInvalidClassifierMode indicates an unknown classifier mode.
	ErrInvalidClassifierMode = errors.New("invalid classifier mode")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Classifier modes used in Config.ClassifierMode.
const (
	ClassifierModel   = "model"
	ClassifierKeyword = "keyword"
)

const (
	// DefaultEmbedderModel is the default embedding model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension is the vector dimensionality the schema
	// declares. Every embedding record in one deployment must come from
	// the same model at the same dimensionality; mixing vector spaces
	// silently corrupts ranking.
	DefaultEmbedderDimension = 1536
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Ingestion configuration
	ChunkSize         int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	EmbedBatchSize    int `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	EmbedBatchDelayMS int `mapstructure:"embed_batch_delay_ms" json:"embed_batch_delay_ms"`

	// Retrieval configuration. Thresholds differ per entity type because
	// document and representative content embed at different densities.
	DocumentMinSimilarity       float64 `mapstructure:"document_min_similarity" json:"document_min_similarity"`
	RepresentativeMinSimilarity float64 `mapstructure:"representative_min_similarity" json:"representative_min_similarity"`
	DocumentTopK                int     `mapstructure:"document_top_k" json:"document_top_k"`
	RepresentativeTopK          int     `mapstructure:"representative_top_k" json:"representative_top_k"`
	RetrieverTimeoutMS          int     `mapstructure:"retriever_timeout_ms" json:"retriever_timeout_ms"`

	// ClassifierMode selects intent classification: "model" asks the
	// generation model, "keyword" uses the deterministic dispatch table
	// (useful offline and in tests).
	ClassifierMode string `mapstructure:"classifier_mode" json:"classifier_mode"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Observability configuration (OTLP trace export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".civiq")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 2048)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Ingestion defaults. 1500/300 and 5/1000ms are carried over from the
	// deployed system; empirically chosen, not derived from an evaluation.
	viper.SetDefault("chunk_size", 1500)
	viper.SetDefault("chunk_overlap", 300)
	viper.SetDefault("embed_batch_size", 5)
	viper.SetDefault("embed_batch_delay_ms", 1000)

	// Retrieval defaults
	viper.SetDefault("document_min_similarity", 0.75)
	viper.SetDefault("representative_min_similarity", 0.70)
	viper.SetDefault("document_top_k", 5)
	viper.SetDefault("representative_top_k", 5)
	viper.SetDefault("retriever_timeout_ms", 3000)
	viper.SetDefault("classifier_mode", ClassifierModel)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "civiq")
	viper.SetDefault("postgres_password", "civiq_dev_password")
	viper.SetDefault("postgres_db_name", "civiq")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Observability defaults
	viper.SetDefault("otlp_endpoint", "localhost:4318")
	viper.SetDefault("service_name", "civiq")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "CIVIQ_PROVIDER")
	mustBind("model_name", "CIVIQ_MODEL_NAME")
	mustBind("embedder_model", "CIVIQ_EMBEDDER_MODEL")
	mustBind("ollama_host", "CIVIQ_OLLAMA_HOST")
	mustBind("otlp_endpoint", "CIVIQ_OTLP_ENDPOINT")
	mustBind("environment", "CIVIQ_ENVIRONMENT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones show the first and last two characters.
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
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
