package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the sslmode values accepted by PostgreSQL.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the whole configuration and returns the first violation.
// Called by Load; callers constructing a Config by hand should call it too.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini, googleai, or ollama)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmbedderModel)
	}

	if c.EmbedderDimension <= 0 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: %d (expected 1-4096)", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateBatching(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	return c.validateStorage()
}

func (c *Config) validateChunking() error {
	if c.ChunkSize < 100 || c.ChunkSize > 100_000 {
		return fmt.Errorf("%w: chunk_size %d (expected 100-100000)", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap %d is negative", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

func (c *Config) validateBatching() error {
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 100 {
		return fmt.Errorf("%w: embed_batch_size %d (expected 1-100)", ErrInvalidBatching, c.EmbedBatchSize)
	}
	if c.EmbedBatchDelayMS < 0 || c.EmbedBatchDelayMS > 60_000 {
		return fmt.Errorf("%w: embed_batch_delay_ms %d (expected 0-60000)", ErrInvalidBatching, c.EmbedBatchDelayMS)
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	for name, v := range map[string]float64{
		"document_min_similarity":       c.DocumentMinSimilarity,
		"representative_min_similarity": c.RepresentativeMinSimilarity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v (expected 0-1)", ErrInvalidThreshold, name, v)
		}
	}
	for name, k := range map[string]int{
		"document_top_k":       c.DocumentTopK,
		"representative_top_k": c.RepresentativeTopK,
	} {
		if k < 1 || k > 100 {
			return fmt.Errorf("%w: %s %d (expected 1-100)", ErrInvalidTopK, name, k)
		}
	}
	if c.RetrieverTimeoutMS < 100 || c.RetrieverTimeoutMS > 120_000 {
		return fmt.Errorf("%w: retriever_timeout_ms %d (expected 100-120000)", ErrInvalidTopK, c.RetrieverTimeoutMS)
	}
	switch c.ClassifierMode {
	case ClassifierModel, ClassifierKeyword:
	default:
		return fmt.Errorf("%w: classifier_mode %q (expected model or keyword)",
			ErrInvalidClassifierMode, c.ClassifierMode)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
