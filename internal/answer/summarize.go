package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/civiq/civiq/internal/store"
)

// maxSummaryInputRunes bounds how much document text goes into one
// summary request.
const maxSummaryInputRunes = 24000

const billSummaryPrompt = `Summarize this bill in three to five sentences for a general
audience: what it changes, who it affects, and its current stage if
stated. Use only the text provided.

Title: %s

%s`

const proceedingSummaryPrompt = `Summarize this parliamentary proceeding in three to five
sentences: what was debated, what was decided, and any votes held. Use
only the text provided.

Title: %s

%s`

// Summarizer generates derived summaries for bill and proceeding
// documents during ingestion.
type Summarizer struct {
	gen       Generator
	modelName string
	logger    *slog.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(gen Generator, modelName string, logger *slog.Logger) (*Summarizer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{gen: gen, modelName: modelName, logger: logger}, nil
}

// Summarize produces the summary text for a document of the given type.
func (s *Summarizer) Summarize(ctx context.Context, docType, title, content string) (string, error) {
	var prompt string
	switch docType {
	case store.DocTypeBill:
		prompt = billSummaryPrompt
	case store.DocTypeProceeding:
		prompt = proceedingSummaryPrompt
	default:
		return "", fmt.Errorf("no summary prompt for document type %q", docType)
	}

	resp, err := s.gen.Generate(ctx,
		ai.WithModelName(s.modelName),
		ai.WithPrompt(prompt, title, truncateRunes(content, maxSummaryInputRunes)),
	)
	if err != nil {
		return "", fmt.Errorf("generating %s summary: %w", docType, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty %s summary", docType)
	}
	return text, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
