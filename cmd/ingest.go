package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/civiq/civiq/internal/ingest"
)

// timeRounding keeps reported durations readable.
const timeRounding = 10 * time.Millisecond

var (
	ingestDocType string
	ingestForce   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a document file or directory into the corpus",
	Long: `Ingest reads plain-text documents (.txt, .md), splits them into
overlapping chunks, embeds every chunk, and stores the result for
retrieval. Directories are walked recursively; files ingested before
are skipped unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocType, "type", "",
		"document type: constitution, statute, bill, proceeding")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false,
		"re-ingest files that were ingested before")
	_ = ingestCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	// One ingest run at a time per machine. Concurrent runs would race
	// on the embedding rate-limit budget and on source-file dedup.
	lock := flock.New(filepath.Join(os.TempDir(), "civiq-ingest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return errors.New("another ingest run is already in progress")
	}
	defer func() { _ = lock.Unlock() }()

	application, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if info.IsDir() {
		return ingestDirectory(ctx, cmd, application.Pipeline, path)
	}
	return ingestFile(ctx, cmd, application.Pipeline, path)
}

func ingestFile(ctx context.Context, cmd *cobra.Command, pipeline *ingest.Pipeline, path string) error {
	result, err := pipeline.IngestFile(ctx, path, ingestDocType, ingestForce)
	if err != nil {
		return err
	}

	if result.Skipped {
		cmd.Printf("Skipped %s (already ingested, use --force to replace)\n", result.SourceFile)
		return nil
	}

	cmd.Printf("Ingested %s\n", result.SourceFile)
	cmd.Printf("  Document: %s\n", result.DocumentID)
	cmd.Printf("  Chunks:   %d\n", result.Chunks)
	if result.SummaryStatus != "" {
		cmd.Printf("  Summary:  %s\n", result.SummaryStatus)
	}
	cmd.Printf("  Duration: %s\n", result.Duration.Round(timeRounding))
	return nil
}

func ingestDirectory(ctx context.Context, cmd *cobra.Command, pipeline *ingest.Pipeline, path string) error {
	result, err := pipeline.IngestDirectory(ctx, path, ingestDocType, ingestForce)
	if err != nil {
		return err
	}

	cmd.Printf("Ingested %s\n", path)
	cmd.Printf("  Added:    %d files (%d chunks)\n", result.FilesAdded, result.Chunks)
	cmd.Printf("  Skipped:  %d files\n", result.FilesSkipped)
	cmd.Printf("  Failed:   %d files\n", result.FilesFailed)
	cmd.Printf("  Duration: %s\n", result.Duration.Round(timeRounding))

	for _, failure := range result.Failures {
		cmd.PrintErrf("  %s: %v\n", failure.Path, failure.Err)
	}
	if result.FilesFailed > 0 {
		return fmt.Errorf("%d files failed to ingest", result.FilesFailed)
	}
	return nil
}
