package config

import (
	"errors"
	"strings"
	"testing"
)

// validConfig returns a Config that passes Validate.
func validConfig() *Config {
	return &Config{
		Provider:          ProviderGemini,
		ModelName:         "gemini-2.5-flash",
		EmbedderModel:     DefaultEmbedderModel,
		EmbedderDimension: DefaultEmbedderDimension,

		ChunkSize:         1500,
		ChunkOverlap:      300,
		EmbedBatchSize:    5,
		EmbedBatchDelayMS: 1000,

		DocumentMinSimilarity:       0.75,
		RepresentativeMinSimilarity: 0.70,
		DocumentTopK:                5,
		RepresentativeTopK:          5,
		RetrieverTimeoutMS:          3000,
		ClassifierMode:              ClassifierModel,

		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "civiq",
		PostgresPassword: "secret",
		PostgresDBName:   "civiq",
		PostgresSSLMode:  "disable",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown provider", func(c *Config) { c.Provider = "watson" }, ErrInvalidProvider},
		{"empty model", func(c *Config) { c.ModelName = " " }, ErrInvalidModelName},
		{"empty embedder", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"zero dimension", func(c *Config) { c.EmbedderDimension = 0 }, ErrInvalidEmbedderDimension},
		{"overlap >= size", func(c *Config) { c.ChunkOverlap = 1500 }, ErrInvalidChunking},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, ErrInvalidChunking},
		{"tiny chunk size", func(c *Config) { c.ChunkSize = 10 }, ErrInvalidChunking},
		{"zero batch size", func(c *Config) { c.EmbedBatchSize = 0 }, ErrInvalidBatching},
		{"threshold above one", func(c *Config) { c.DocumentMinSimilarity = 1.5 }, ErrInvalidThreshold},
		{"negative threshold", func(c *Config) { c.RepresentativeMinSimilarity = -0.1 }, ErrInvalidThreshold},
		{"zero top k", func(c *Config) { c.DocumentTopK = 0 }, ErrInvalidTopK},
		{"bad classifier mode", func(c *Config) { c.ClassifierMode = "oracle" }, ErrInvalidClassifierMode},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"bad port", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "sometimes" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want errors.Is(..., %v)", err, tt.wantErr)
			}
		})
	}
}

func TestMarshalJSON_MasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super_secret_password"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	if strings.Contains(string(data), "super_secret_password") {
		t.Error("MarshalJSON leaked the postgres password")
	}
}

func TestString_MasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "another_secret_value"
	if strings.Contains(cfg.String(), "another_secret_value") {
		t.Error("String() leaked the postgres password")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in      string
		wantSub string
	}{
		{"", ""},
		{"short", maskedValue},
		{"a_much_longer_secret", "a_<" + maskedValue + ">et"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.wantSub {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.wantSub)
		}
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{ProviderGemini, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{ProviderOllama, "llama3.3", "ollama/llama3.3"},
		{ProviderGemini, "googleai/gemini-2.5-pro", "googleai/gemini-2.5-pro"},
	}
	for _, tt := range tests {
		c := &Config{Provider: tt.provider, ModelName: tt.model}
		if got := c.FullModelName(); got != tt.want {
			t.Errorf("FullModelName(%s, %s) = %q, want %q", tt.provider, tt.model, got, tt.want)
		}
	}
}

func TestPostgresConnectionString_QuotesPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "has space's"

	dsn := cfg.PostgresConnectionString()
	if !strings.Contains(dsn, `password='has space\'s'`) {
		t.Errorf("DSN did not quote password correctly: %s", dsn)
	}
}

func TestPostgresURL_EncodesCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresUser = "user@domain"
	cfg.PostgresPassword = "p@ss/word"

	u := cfg.PostgresURL()
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("unexpected scheme: %s", u)
	}
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("password not URL-encoded: %s", u)
	}
}
