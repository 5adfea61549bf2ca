// Package embedding wraps an external embedding model behind a small
// adapter that produces fixed-length dense vectors.
//
// The adapter supports genuine multi-text batch requests, degrading to
// sequential single-text calls only when the provider does not return
// one embedding per input. Batch calls are paced by a rate limiter so
// ingestion respects provider rate limits.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderError reports a failed provider call with enough context to
// identify the offending text. Callers add document-level identifiers
// by wrapping.
type ProviderError struct {
	Model     string
	TextIndex int // index within the submitted batch; -1 for single calls
	Err       error
}

func (e *ProviderError) Error() string {
	if e.TextIndex >= 0 {
		return fmt.Sprintf("embedding provider %s failed at batch index %d: %v", e.Model, e.TextIndex, e.Err)
	}
	return fmt.Sprintf("embedding provider %s failed: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Config holds adapter parameters.
type Config struct {
	// Model is the embedding model name, used in error reporting.
	Model string

	// Dimension is the vector dimensionality the schema declares. Every
	// returned vector is checked against it; a mismatch means the
	// deployment is mixing vector spaces.
	Dimension int

	// BatchDelay is the minimum interval between provider batch calls.
	BatchDelay time.Duration
}

// Provider converts text into dense vectors via a Genkit embedder.
//
// Provider is safe for concurrent use; the shared limiter coordinates
// the rate-limit budget across concurrent callers in this process.
type Provider struct {
	embedder  ai.Embedder
	model     string
	dimension int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewProvider creates a Provider. A zero BatchDelay disables pacing.
func NewProvider(embedder ai.Embedder, cfg Config, logger *slog.Logger) (*Provider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.BatchDelay > 0 {
		limit = rate.Every(cfg.BatchDelay)
	}

	return &Provider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (p *Provider) Dimension() int { return p.dimension }

// Embed converts a single text into a vector. Single calls are not
// paced; only batch ingestion competes for the rate-limit budget.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &ProviderError{Model: p.model, TextIndex: -1,
			Err: fmt.Errorf("expected 1 embedding, got %d", len(vecs))}
	}
	return vecs[0], nil
}

// EmbedBatch converts many texts into vectors with one provider call,
// waiting on the rate limiter first. If the provider does not return
// one embedding per input, it falls back to sequential single calls,
// still paced per call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	vecs, err := p.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == len(texts) {
		return vecs, nil
	}

	// Provider ignored the extra inputs; go one at a time.
	p.logger.Debug("provider returned partial batch, falling back to sequential calls",
		"requested", len(texts), "returned", len(vecs))
	return p.embedSequential(ctx, texts)
}

func (p *Provider) embedSequential(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if i > 0 {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}
		vecs, err := p.request(ctx, []string{text})
		if err != nil {
			var perr *ProviderError
			if ok := asProviderError(err, &perr); ok {
				perr.TextIndex = i
				return nil, perr
			}
			return nil, err
		}
		if len(vecs) != 1 {
			return nil, &ProviderError{Model: p.model, TextIndex: i,
				Err: fmt.Errorf("expected 1 embedding, got %d", len(vecs))}
		}
		out = append(out, vecs[0])
	}
	return out, nil
}

// request issues one provider call for the given texts and validates
// the dimensionality of every returned vector.
func (p *Provider) request(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	dim := int32(p.dimension)
	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, &ProviderError{Model: p.model, TextIndex: -1, Err: err}
	}

	vecs := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Embedding) == 0 {
			return nil, &ProviderError{Model: p.model, TextIndex: i,
				Err: fmt.Errorf("empty embedding returned")}
		}
		if len(e.Embedding) != p.dimension {
			return nil, &ProviderError{Model: p.model, TextIndex: i,
				Err: fmt.Errorf("vector dimension %d does not match configured %d", len(e.Embedding), p.dimension)}
		}
		vecs = append(vecs, e.Embedding)
	}
	return vecs, nil
}

func asProviderError(err error, target **ProviderError) bool {
	pe, ok := err.(*ProviderError)
	if ok {
		*target = pe
	}
	return ok
}
