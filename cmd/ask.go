package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded in the ingested corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	application, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is required")
	}

	// Stream chunks to stdout as they arrive; the final text is only
	// printed when nothing streamed (some providers answer in one shot).
	streamed := false
	callback := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		streamed = true
		fmt.Print(chunk.Text())
		return nil
	}

	resp, err := application.Answerer.Answer(ctx, nil, question, callback)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	if streamed {
		fmt.Println()
	} else {
		fmt.Println(resp.Text)
	}

	if !resp.ContextFound {
		fmt.Fprintln(os.Stderr, "note: no relevant documents were found; ingest more sources with `civiq ingest`")
	}
	return nil
}
