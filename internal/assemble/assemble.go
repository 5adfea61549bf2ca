// Package assemble builds the grounded context block for generation.
//
// Given a query and the entity types its classification selected, the
// assembler embeds the query once, fans retrieval out to one task per
// entity type, and fans the results back in. Each retrieval task runs
// under its own timeout; a task that times out or fails contributes an
// empty set and is logged, never failing the whole query. Non-empty
// results become labeled blocks joined by an explicit separator, and
// empty results contribute no block at all.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/civiq/civiq/internal/classify"
)

// Separator divides labeled context blocks in the assembled output.
const Separator = "\n\n---\n\n"

// Embedder is what the assembler needs to embed the query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever serves one entity type. Retrieve returns formatted context
// text, or "" when nothing scored above threshold.
type Retriever interface {
	Entity() classify.EntityType
	Label() string
	Retrieve(ctx context.Context, embedding []float32) (string, error)
}

// Assembler fans retrieval out across entity types and assembles the
// labeled context.
type Assembler struct {
	embedder   Embedder
	retrievers map[classify.EntityType]Retriever
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates an Assembler over the given retrievers. timeout bounds
// each retrieval task individually.
func New(embedder Embedder, timeout time.Duration, logger *slog.Logger, retrievers ...Retriever) (*Assembler, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("at least one retriever is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byEntity := make(map[classify.EntityType]Retriever, len(retrievers))
	for _, r := range retrievers {
		if _, dup := byEntity[r.Entity()]; dup {
			return nil, fmt.Errorf("duplicate retriever for entity %q", r.Entity())
		}
		byEntity[r.Entity()] = r
	}
	return &Assembler{
		embedder:   embedder,
		retrievers: byEntity,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// taskResult carries one retrieval task's outcome back to the fan-in,
// keeping the requested entity order via index.
type taskResult struct {
	index int
	text  string
}

// Assemble retrieves context for every requested entity type and joins
// the labeled blocks. An empty return means nothing relevant was found
// anywhere; the caller decides what that means for generation.
func (a *Assembler) Assemble(ctx context.Context, query string, entities []classify.EntityType) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if len(entities) == 0 {
		return "", fmt.Errorf("no entity types requested")
	}

	// One embedding serves every retriever; they share a vector space.
	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	// Fan out: one task per requested entity type with a retriever.
	type task struct {
		index     int
		retriever Retriever
	}
	var tasks []task
	for _, entity := range entities {
		r, ok := a.retrievers[entity]
		if !ok {
			a.logger.Warn("no retriever for entity type", "entity", entity)
			continue
		}
		tasks = append(tasks, task{index: len(tasks), retriever: r})
	}
	if len(tasks) == 0 {
		return "", nil
	}

	results := make(chan taskResult, len(tasks))
	for _, tk := range tasks {
		go func(tk task) {
			taskCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			text, retrieveErr := tk.retriever.Retrieve(taskCtx, embedding)
			if retrieveErr != nil {
				// Failure isolation: this source contributes nothing,
				// the others still answer.
				a.logger.Warn("retrieval task failed",
					"entity", tk.retriever.Entity(), "error", retrieveErr)
				results <- taskResult{index: tk.index}
				return
			}
			results <- taskResult{index: tk.index, text: text}
		}(tk)
	}

	// Fan in, restoring the requested order.
	texts := make([]string, len(tasks))
	for range tasks {
		r := <-results
		texts[r.index] = r.text
	}

	var blocks []string
	for i, tk := range tasks {
		if texts[i] == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("## %s\n\n%s", tk.retriever.Label(), texts[i]))
	}
	return strings.Join(blocks, Separator), nil
}
