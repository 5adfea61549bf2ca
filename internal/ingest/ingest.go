// Package ingest turns source files into persisted, embedded documents.
//
// A document moves through fixed stages: extraction, chunking, embedding,
// persistence, and derived-record creation. Embedding completes for every
// chunk before anything is written, and the write is one transaction, so
// a failed run leaves no partial document behind. Derived summary
// generation failure degrades the run instead of failing it: the document
// stays retrievable and the summary record carries a failed status.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civiq/civiq/internal/chunker"
	"github.com/civiq/civiq/internal/store"
)

// State names the pipeline stage a document is in. Failures carry the
// state they occurred in.
type State string

const (
	StateExtracting    State = "extracting"
	StateChunking      State = "chunking"
	StateEmbedding     State = "embedding"
	StatePersisting    State = "persisting"
	StateDerivedRecord State = "derived_record"
	StateComplete      State = "complete"
	StateFailed        State = "failed"
)

var (
	// ErrAlreadyIngested is returned when the source file was ingested
	// before and force re-ingestion was not requested.
	ErrAlreadyIngested = errors.New("source file already ingested")

	// ErrEmptyDocument is returned when extraction yields no text.
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrUnsupportedFile is returned for file types the extractor cannot
	// handle.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// PipelineError reports a failed ingestion with the stage it failed in.
type PipelineError struct {
	State      State
	SourceFile string
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingesting %s: %s stage: %v", e.SourceFile, e.State, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Store is what the pipeline needs from persistent storage.
// *store.Store satisfies it.
type Store interface {
	ExistsBySourceFile(ctx context.Context, sourceFile string) (bool, error)
	DocumentIDBySourceFile(ctx context.Context, sourceFile string) (uuid.UUID, error)
	InsertDocument(ctx context.Context, doc store.Document, chunks []store.ChunkRecord) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	UpsertBillSummary(ctx context.Context, sum store.BillSummary) error
	UpsertProceedingSummary(ctx context.Context, sum store.ProceedingSummary) error
}

// Embedder is what the pipeline needs from the embedding adapter.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces the derived summary for bill and proceeding
// documents. A nil Summarizer leaves summary records pending.
type Summarizer interface {
	Summarize(ctx context.Context, docType, title, content string) (string, error)
}

// supportedExtensions are the plain-text formats the extractor handles.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// DefaultBatchSize is how many chunks go into one embedding request when
// configuration does not say otherwise.
const DefaultBatchSize = 5

// Config holds pipeline parameters.
type Config struct {
	// BatchSize is the number of chunks per embedding request.
	BatchSize int
}

// Pipeline ingests source files end to end.
type Pipeline struct {
	store      Store
	embedder   Embedder
	splitter   *chunker.Chunker
	summarizer Summarizer
	batchSize  int
	logger     *slog.Logger
}

// New creates a Pipeline. summarizer may be nil; summary records are then
// written with pending status.
func New(st Store, embedder Embedder, splitter *chunker.Chunker, summarizer Summarizer,
	cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if splitter == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      st,
		embedder:   embedder,
		splitter:   splitter,
		summarizer: summarizer,
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}, nil
}

// Result reports what one file ingestion did.
type Result struct {
	DocumentID    uuid.UUID
	SourceFile    string
	State         State
	Chunks        int
	Skipped       bool
	SummaryStatus string
	Duration      time.Duration
}

// IngestFile runs the full pipeline on one file. When the file was
// ingested before, it is skipped unless force is set, in which case the
// previous document is deleted and re-ingested.
func (p *Pipeline) IngestFile(ctx context.Context, path, docType string, force bool) (*Result, error) {
	start := time.Now()
	sourceFile := filepath.Base(path)

	fail := func(state State, err error) (*Result, error) {
		return nil, &PipelineError{State: state, SourceFile: sourceFile, Err: err}
	}

	// Extraction.
	text, err := extractText(path)
	if err != nil {
		return fail(StateExtracting, err)
	}
	if strings.TrimSpace(text) == "" {
		return fail(StateExtracting, ErrEmptyDocument)
	}

	exists, err := p.store.ExistsBySourceFile(ctx, sourceFile)
	if err != nil {
		return fail(StateExtracting, err)
	}
	if exists {
		if !force {
			p.logger.Info("skipping already ingested file", "source_file", sourceFile)
			return &Result{
				SourceFile: sourceFile,
				State:      StateComplete,
				Skipped:    true,
				Duration:   time.Since(start),
			}, nil
		}
		prevID, idErr := p.store.DocumentIDBySourceFile(ctx, sourceFile)
		if idErr != nil {
			return fail(StateExtracting, idErr)
		}
		if delErr := p.store.DeleteDocument(ctx, prevID); delErr != nil {
			return fail(StateExtracting, delErr)
		}
		p.logger.Info("replacing previously ingested file", "source_file", sourceFile, "previous_id", prevID)
	}

	// Chunking.
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		return fail(StateChunking, ErrEmptyDocument)
	}

	// Embedding. Every chunk embeds before anything is written.
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return fail(StateEmbedding, err)
	}

	// Persistence: one transaction for the document and all chunks.
	doc := store.Document{
		ID:         uuid.New(),
		Title:      deriveTitle(text, sourceFile),
		DocType:    docType,
		Content:    text,
		SourceFile: sourceFile,
	}
	records := make([]store.ChunkRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = store.ChunkRecord{
			Content:    ch.Content,
			Index:      ch.Index,
			Page:       ch.Page,
			Section:    ch.Section,
			DetectedAt: ch.DetectedAt,
			Embedding:  vectors[i],
		}
	}
	if err := p.store.InsertDocument(ctx, doc, records); err != nil {
		return fail(StatePersisting, err)
	}

	result := &Result{
		DocumentID: doc.ID,
		SourceFile: sourceFile,
		Chunks:     len(records),
		Duration:   time.Since(start),
	}

	// Derived records for bill and proceeding documents. Generation
	// failure does not undo the ingestion.
	result.SummaryStatus = p.createDerivedRecord(ctx, doc)
	result.State = StateComplete
	result.Duration = time.Since(start)

	p.logger.Info("ingested document",
		"id", doc.ID, "doc_type", docType, "source_file", sourceFile,
		"chunks", len(records), "summary_status", result.SummaryStatus,
		"duration", result.Duration)
	return result, nil
}

// embedChunks embeds all chunks in batches and returns vectors aligned
// with the chunk slice.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for begin := 0; begin < len(chunks); begin += p.batchSize {
		end := begin + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-begin)
		for _, ch := range chunks[begin:end] {
			texts = append(texts, ch.Content)
		}

		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", begin, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// createDerivedRecord writes the summary record for bill and proceeding
// documents and returns its status. Other document types have none and
// return "".
func (p *Pipeline) createDerivedRecord(ctx context.Context, doc store.Document) string {
	switch doc.DocType {
	case store.DocTypeBill:
		sum := store.BillSummary{
			DocumentID: doc.ID,
			BillNumber: detectBillNumber(doc.Content),
			Status:     store.SummaryStatusPending,
		}
		if p.summarizer != nil {
			text, err := p.summarizer.Summarize(ctx, doc.DocType, doc.Title, doc.Content)
			if err != nil {
				p.logger.Warn("bill summary generation failed",
					"document_id", doc.ID, "error", err)
				sum.Status = store.SummaryStatusFailed
			} else {
				sum.Summary = text
				sum.Status = store.SummaryStatusComplete
			}
		}
		if err := p.store.UpsertBillSummary(ctx, sum); err != nil {
			p.logger.Warn("writing bill summary record failed", "document_id", doc.ID, "error", err)
			return store.SummaryStatusFailed
		}
		return sum.Status

	case store.DocTypeProceeding:
		sum := store.ProceedingSummary{
			DocumentID: doc.ID,
			Status:     store.SummaryStatusPending,
		}
		if p.summarizer != nil {
			text, err := p.summarizer.Summarize(ctx, doc.DocType, doc.Title, doc.Content)
			if err != nil {
				p.logger.Warn("proceeding summary generation failed",
					"document_id", doc.ID, "error", err)
				sum.Status = store.SummaryStatusFailed
			} else {
				sum.Summary = text
				sum.Status = store.SummaryStatusComplete
			}
		}
		if err := p.store.UpsertProceedingSummary(ctx, sum); err != nil {
			p.logger.Warn("writing proceeding summary record failed", "document_id", doc.ID, "error", err)
			return store.SummaryStatusFailed
		}
		return sum.Status
	}
	return ""
}

// extractText reads a supported file through a restricted filesystem
// root, preventing traversal outside the file's directory.
func extractText(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !supportedExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}

	root, err := os.OpenRoot(filepath.Dir(absPath))
	if err != nil {
		return "", fmt.Errorf("opening root directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	content, err := root.ReadFile(filepath.Base(absPath))
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(content), nil
}

// deriveTitle takes the first non-empty line as the document title,
// stripped of markdown header markers, falling back to the file name.
func deriveTitle(text, sourceFile string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		const maxTitle = 200
		if len(line) > maxTitle {
			runes := []rune(line)
			if len(runes) > maxTitle {
				line = string(runes[:maxTitle])
			}
		}
		return line
	}
	return sourceFile
}

var billNumberPattern = regexp.MustCompile(`(?i)\bbill\s+(?:no\.?\s*)?([A-Z]?-?\d+[A-Z]?)\b`)

// detectBillNumber pulls a bill designation like "Bill C-12" or
// "Bill No. 45" out of the text, or returns "".
func detectBillNumber(text string) string {
	m := billNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
