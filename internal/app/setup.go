package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiq/civiq/db"
	"github.com/civiq/civiq/internal/answer"
	"github.com/civiq/civiq/internal/assemble"
	"github.com/civiq/civiq/internal/chunker"
	"github.com/civiq/civiq/internal/classify"
	"github.com/civiq/civiq/internal/config"
	"github.com/civiq/civiq/internal/embedding"
	"github.com/civiq/civiq/internal/ingest"
	"github.com/civiq/civiq/internal/observability"
	"github.com/civiq/civiq/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	a.Embedding, err = embedding.NewProvider(embedder, embedding.Config{
		Model:      cfg.EmbedderModel,
		Dimension:  cfg.EmbedderDimension,
		BatchDelay: time.Duration(cfg.EmbedBatchDelayMS) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	a.Store, err = store.New(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	splitter, err := chunker.New(chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	gen := &genkitGenerator{g: g}

	summarizer, err := answer.NewSummarizer(gen, cfg.FullModelName(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating summarizer: %w", err)
	}

	a.Pipeline, err = ingest.New(a.Store, a.Embedding, splitter, summarizer,
		ingest.Config{BatchSize: cfg.EmbedBatchSize}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ingest pipeline: %w", err)
	}

	answerer, err := provideAnswerer(a, gen)
	if err != nil {
		return nil, err
	}
	a.Answerer = answerer

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization. Must run before provideGenkit so the TracerProvider is
// ready when Genkit creates its first span.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		slog.Warn("setting up tracing, tracing disabled", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	return pool, cleanup, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama providers. Call ordering in Setup
// ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // "gemini"
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideAnswerer builds the answering stack: classifier, per-entity
// retrievers, assembler, and the answerer on top.
func provideAnswerer(a *App, gen *genkitGenerator) (*answer.Answerer, error) {
	cfg := a.Config

	var classifier classify.Classifier
	if cfg.ClassifierMode == config.ClassifierKeyword {
		classifier = classify.NewKeyword()
	} else {
		model, err := classify.NewModel(gen, cfg.FullModelName(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating classifier: %w", err)
		}
		classifier = model
	}

	retrievers := []assemble.Retriever{
		assemble.NewDocumentRetriever(a.Store, cfg.DocumentTopK, cfg.DocumentMinSimilarity),
		assemble.NewBillRetriever(a.Store, cfg.DocumentTopK, cfg.DocumentMinSimilarity),
		assemble.NewRepresentativeRetriever(a.Store, cfg.RepresentativeTopK, cfg.RepresentativeMinSimilarity),
	}

	assembler, err := assemble.New(a.Embedding,
		time.Duration(cfg.RetrieverTimeoutMS)*time.Millisecond, a.logger, retrievers...)
	if err != nil {
		return nil, fmt.Errorf("creating assembler: %w", err)
	}

	answerer, err := answer.New(gen, classifier, assembler, cfg.FullModelName(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating answerer: %w", err)
	}

	return answerer, nil
}
