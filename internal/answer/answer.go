// Package answer is the query entry point: it classifies the user's
// question, assembles grounded context from the selected sources, and
// streams a generation constrained to that context.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/civiq/civiq/internal/classify"
)

// StreamCallback receives response chunks as the model produces them.
// A nil callback disables streaming.
type StreamCallback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Generator abstracts the generation call.
type Generator interface {
	Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// Assembler builds the grounded context for a query.
type Assembler interface {
	Assemble(ctx context.Context, query string, entities []classify.EntityType) (string, error)
}

// systemPrompt constrains generation to the retrieved context. The
// context is data; the model must not treat it as instructions.
const systemPrompt = `You are a civic information assistant. Answer the user's question using
ONLY the context below. Cite the document or representative a statement
comes from. If the context does not contain what the question needs,
say you do not have enough information and suggest rephrasing; never
invent laws, bill numbers, or officials.

Context:
%s`

// emptyContextNote replaces the context when retrieval found nothing, so
// the model declines from instruction instead of hallucinating.
const emptyContextNote = `(no relevant context was found for this question)`

// fallbackAnswer is returned when the model produces no text at all.
const fallbackAnswer = "I could not produce an answer to that question. Please try rephrasing it."

// Response is the outcome of one answered query.
type Response struct {
	// Text is the final answer.
	Text string

	// Entities is the classification the retrieval ran with.
	Entities []classify.EntityType

	// ContextFound reports whether any source contributed context.
	ContextFound bool
}

// Answerer answers questions over the ingested corpus.
type Answerer struct {
	gen        Generator
	classifier classify.Classifier
	assembler  Assembler
	modelName  string
	logger     *slog.Logger
}

// New creates an Answerer.
func New(gen Generator, classifier classify.Classifier, assembler Assembler,
	modelName string, logger *slog.Logger) (*Answerer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if assembler == nil {
		return nil, fmt.Errorf("assembler is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		gen:        gen,
		classifier: classifier,
		assembler:  assembler,
		modelName:  modelName,
		logger:     logger,
	}, nil
}

// Answer classifies query, retrieves and assembles context, and
// generates the grounded answer. history carries earlier conversation
// turns; callback, when non-nil, streams chunks as they arrive.
func (a *Answerer) Answer(ctx context.Context, history []*ai.Message, query string,
	callback StreamCallback) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	entities, err := a.classifier.Classify(ctx, query)
	if err != nil || len(entities) == 0 {
		// Classifiers degrade internally; this is belt and suspenders.
		a.logger.Warn("classification failed, using fallback", "error", err)
		entities = classify.Fallback()
	}
	a.logger.Debug("classified query", "entities", entities)

	contextText, err := a.assembler.Assemble(ctx, query, entities)
	if err != nil {
		return nil, fmt.Errorf("assembling context: %w", err)
	}
	contextFound := contextText != ""
	if !contextFound {
		contextText = emptyContextNote
	}

	messages := append(copyMessages(history), ai.NewUserMessage(ai.NewTextPart(query)))

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(fmt.Sprintf(systemPrompt, contextText)),
		ai.WithMessages(messages...),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	resp, err := a.gen.Generate(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		a.logger.Warn("model returned empty answer")
		text = fallbackAnswer
	}

	return &Response{
		Text:         text,
		Entities:     entities,
		ContextFound: contextFound,
	}, nil
}

// copyMessages copies the history slice and its messages so concurrent
// callers sharing a history cannot race on in-place mutation during
// rendering.
func copyMessages(messages []*ai.Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages)+1)
	for _, m := range messages {
		if m == nil {
			continue
		}
		cp := *m
		cp.Content = append([]*ai.Part(nil), m.Content...)
		out = append(out, &cp)
	}
	return out
}
