package app

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// genkitGenerator adapts a Genkit runtime to the Generate method the
// classify and answer packages consume, keeping them testable without a
// live runtime.
type genkitGenerator struct {
	g *genkit.Genkit
}

func (gg *genkitGenerator) Generate(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	return genkit.Generate(ctx, gg.g, opts...)
}
