// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: the Genkit
// runtime, the database pool, the ingestion pipeline, and the answering
// stack. Setup builds it in dependency order; Close releases resources
// in reverse.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiq/civiq/internal/answer"
	"github.com/civiq/civiq/internal/config"
	"github.com/civiq/civiq/internal/embedding"
	"github.com/civiq/civiq/internal/ingest"
	"github.com/civiq/civiq/internal/store"
)

// App is the core application container.
type App struct {
	Config *config.Config

	// Core services
	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool
	Store     *store.Store
	Embedding *embedding.Provider

	// Entry points
	Pipeline *ingest.Pipeline
	Answerer *answer.Answerer

	logger      *slog.Logger
	otelCleanup func()
	dbCleanup   func()
	cancel      context.CancelFunc
}

// Close gracefully shuts down all resources. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	a.log().Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.log().Debug("database pool closed")
	}

	// Last so final spans still flush.
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}

func (a *App) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
