// Package cmd provides CLI commands for civiq.
//
// Commands:
//   - ingest: ingest a document file or directory into the corpus
//   - ask: answer a question over the ingested corpus
//   - version: show version and configuration information
//
// Signal handling and graceful shutdown are implemented for all
// commands via context cancellation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civiq/civiq/internal/app"
	"github.com/civiq/civiq/internal/config"
	"github.com/civiq/civiq/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "civiq",
	Short: "civiq - civic information assistant",
	Long: `civiq answers questions about constitutions, statutes, bills,
parliamentary proceedings, and elected representatives, grounded in
documents you ingest.

Ingest source documents first, then ask questions:

  civiq ingest --type statute ./statutes/
  civiq ask "who represents Riverside North?"`,
	SilenceUsage: true,
}

// Execute is the main entry point for the civiq CLI application.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger initializes the structured logger. DEBUG in the environment
// enables debug level. Logs go to stderr; stdout carries answers only.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setupApp loads configuration, verifies the environment, and builds the
// application. Callers must Close the returned App.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if err := checkRequiredEnv(cfg); err != nil {
		return nil, err
	}

	application, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return application, nil
}

// checkRequiredEnv verifies provider credentials are present before any
// expensive initialization. Ollama runs locally and needs no key.
func checkRequiredEnv(cfg *config.Config) error {
	if cfg.Provider == config.ProviderOllama {
		return nil
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "civiq requires a Gemini API key to function.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}
