package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/civiq/civiq/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command) error {
	cmd.Printf("civiq %s\n", AppVersion)
	cmd.Printf("Build Time: %s\n", BuildTime)
	cmd.Printf("Git Commit: %s\n", GitCommit)
	cmd.Println()

	// Configuration is informational here; an invalid config must not
	// break the version command.
	cfg, err := config.Load()
	if err != nil {
		cmd.PrintErrf("Configuration: unavailable (%v)\n", err)
		return nil
	}

	cmd.Println("Configuration:")
	cmd.Printf("  Provider:  %s\n", cfg.Provider)
	cmd.Printf("  Model:     %s\n", cfg.FullModelName())
	cmd.Printf("  Embedder:  %s (%d dimensions)\n", cfg.EmbedderModel, cfg.EmbedderDimension)
	cmd.Printf("  Database:  %s:%d/%s\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName)

	key := os.Getenv("GEMINI_API_KEY")
	switch {
	case cfg.Provider == config.ProviderOllama:
		cmd.Printf("  Ollama:    %s\n", cfg.OllamaHost)
	case len(key) > 8:
		cmd.Printf("  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	case key != "":
		cmd.Println("  GEMINI_API_KEY: configured")
	default:
		cmd.Println("  GEMINI_API_KEY: not set")
	}

	return nil
}
