package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// classifyPrompt instructs the model to emit only tags. The query is
// interpolated as data, never as instructions.
const classifyPrompt = `You classify civic-information questions by which sources answer them.

Sources:
- document: constitutions, statutes, legal articles, parliamentary proceedings
- representative: elected officials, their contact details, parties, districts, committees
- bill: proposed or passed bills and their status

Answer with a comma-separated list of source tags only, nothing else.
A question may need several sources.

Question: %s`

// Generator abstracts the generation call so the classifier can be
// tested without a live model.
type Generator interface {
	Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// Model classifies queries with a language model at temperature zero.
type Model struct {
	gen       Generator
	modelName string
	logger    *slog.Logger
}

// NewModel creates a model-backed classifier.
func NewModel(gen Generator, modelName string, logger *slog.Logger) (*Model, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{gen: gen, modelName: modelName, logger: logger}, nil
}

// Classify asks the model for source tags. Generation failure or an
// unparseable answer degrades to the document fallback instead of
// failing the query.
func (m *Model) Classify(ctx context.Context, query string) ([]EntityType, error) {
	temperature := float32(0)
	resp, err := m.gen.Generate(ctx,
		ai.WithModelName(m.modelName),
		ai.WithPrompt(classifyPrompt, query),
		ai.WithConfig(&genai.GenerateContentConfig{Temperature: &temperature}),
	)
	if err != nil {
		m.logger.Warn("intent classification failed, using fallback", "error", err)
		return Fallback(), nil
	}

	tags, ok := parseTags(resp.Text())
	if !ok {
		m.logger.Warn("unparseable classification answer, using fallback",
			"answer", resp.Text())
		return Fallback(), nil
	}
	return tags, nil
}
