// Package store persists documents, representatives, and their vector
// embeddings in PostgreSQL + pgvector, and serves similarity retrieval
// over them.
//
// Retrieval uses cosine similarity computed as 1 - (embedding <=> query)
// over HNSW-indexed vector columns. Results below the caller's minimum
// similarity are excluded, and ordering is similarity descending with
// insertion order as the tiebreak, so equal-scoring rows come back in a
// stable order.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Document types accepted by the documents table.
const (
	DocTypeConstitution = "constitution"
	DocTypeStatute      = "statute"
	DocTypeBill         = "bill"
	DocTypeProceeding   = "proceeding"
)

var (
	// ErrInvalidDocType is returned for document types outside the schema's
	// check constraint.
	ErrInvalidDocType = errors.New("invalid document type")

	// ErrNoChunks is returned when a document insert carries no chunks.
	ErrNoChunks = errors.New("document has no chunks")

	// ErrInvalidQuery is returned for retrieval parameters outside their
	// valid ranges.
	ErrInvalidQuery = errors.New("invalid retrieval query")
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is what the store needs from its database handle. *pgxpool.Pool
// satisfies it.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Document is one ingested text unit.
type Document struct {
	ID         uuid.UUID
	Title      string
	DocType    string
	Content    string
	SourceFile string
	CreatedAt  time.Time
}

// ChunkRecord is one embedded chunk ready for persistence.
type ChunkRecord struct {
	Content    string
	Index      int
	Page       int
	Section    string
	DetectedAt string
	Embedding  []float32
}

// DocumentQuery describes a document similarity search.
type DocumentQuery struct {
	// Embedding is the query vector.
	Embedding []float32

	// DocTypes restricts results to the given document types. Empty means
	// all types.
	DocTypes []string

	// TopK is the maximum number of hits to return.
	TopK int

	// MinSimilarity excludes hits scoring below it.
	MinSimilarity float64
}

// DocumentHit is one retrieved chunk with its parent document fields
// carried along for provenance.
type DocumentHit struct {
	DocumentID uuid.UUID
	Title      string
	DocType    string
	SourceFile string
	Content    string
	ChunkIndex int
	Page       int
	Section    string
	Similarity float64
}

// Store persists and retrieves embedded civic documents.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store over the given database handle.
func New(db DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

func validDocType(t string) bool {
	switch t {
	case DocTypeConstitution, DocTypeStatute, DocTypeBill, DocTypeProceeding:
		return true
	}
	return false
}

// InsertDocument persists a document and all of its embedded chunks in a
// single transaction. Either every row lands or none do; a failed chunk
// write rolls back the document as well.
func (s *Store) InsertDocument(ctx context.Context, doc Document, chunks []ChunkRecord) error {
	if !validDocType(doc.DocType) {
		return fmt.Errorf("%w: %q", ErrInvalidDocType, doc.DocType)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %q", ErrNoChunks, doc.SourceFile)
	}
	if doc.ID == uuid.Nil {
		return fmt.Errorf("document ID is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, title, doc_type, content, source_file)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Title, doc.DocType, doc.Content, doc.SourceFile,
	)
	if err != nil {
		return fmt.Errorf("inserting document %q: %w", doc.SourceFile, err)
	}

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		batch.Queue(
			`INSERT INTO document_embeddings
			 (id, document_id, content, embedding, chunk_index, page, section, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), doc.ID, ch.Content, pgvector.NewVector(ch.Embedding),
			ch.Index, ch.Page, nullable(ch.Section), nullable(ch.DetectedAt),
		)
	}
	results := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return fmt.Errorf("inserting chunk %d of %q: %w", chunks[i].Index, doc.SourceFile, execErr)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing chunk batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing document %q: %w", doc.SourceFile, err)
	}

	s.logger.Debug("inserted document",
		"id", doc.ID, "doc_type", doc.DocType, "source_file", doc.SourceFile, "chunks", len(chunks))
	return nil
}

// ExistsBySourceFile reports whether a document with the given source
// file has already been ingested.
func (s *Store) ExistsBySourceFile(ctx context.Context, sourceFile string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE source_file = $1)`,
		sourceFile,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking source file %q: %w", sourceFile, err)
	}
	return exists, nil
}

// DocumentIDBySourceFile returns the id of the document ingested from
// the given source file, or pgx.ErrNoRows wrapped when none exists.
func (s *Store) DocumentIDBySourceFile(ctx context.Context, sourceFile string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT id FROM documents WHERE source_file = $1`,
		sourceFile,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up document by source file %q: %w", sourceFile, err)
	}
	return id, nil
}

// DeleteDocument removes a document; its chunks and derived summaries go
// with it through the cascade.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}

// SearchDocuments retrieves the chunks most similar to the query vector,
// joined with their parent documents. Hits below MinSimilarity are
// excluded; at most TopK hits are returned, best first.
func (s *Store) SearchDocuments(ctx context.Context, q DocumentQuery) ([]DocumentHit, error) {
	if err := validateQuery(len(q.Embedding), q.TopK, q.MinSimilarity); err != nil {
		return nil, err
	}
	for _, t := range q.DocTypes {
		if !validDocType(t) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDocType, t)
		}
	}

	vec := pgvector.NewVector(q.Embedding)

	var docTypes []string
	if len(q.DocTypes) > 0 {
		docTypes = q.DocTypes
	}

	rows, err := s.db.Query(ctx,
		`SELECT d.id, d.title, d.doc_type, d.source_file,
		        e.content, e.chunk_index, e.page, COALESCE(e.section, ''),
		        1 - (e.embedding <=> $1) AS similarity
		 FROM document_embeddings e
		 JOIN documents d ON d.id = e.document_id
		 WHERE ($2::text[] IS NULL OR d.doc_type = ANY($2))
		   AND 1 - (e.embedding <=> $1) >= $3
		 ORDER BY e.embedding <=> $1, e.created_at, e.id
		 LIMIT $4`,
		vec, docTypes, q.MinSimilarity, q.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var hits []DocumentHit
	for rows.Next() {
		var h DocumentHit
		if err := rows.Scan(&h.DocumentID, &h.Title, &h.DocType, &h.SourceFile,
			&h.Content, &h.ChunkIndex, &h.Page, &h.Section, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning document hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading document hits: %w", err)
	}
	return hits, nil
}

// validateQuery checks the parameters shared by all similarity searches.
func validateQuery(embeddingLen, topK int, minSimilarity float64) error {
	if embeddingLen == 0 {
		return fmt.Errorf("%w: empty query embedding", ErrInvalidQuery)
	}
	if topK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidQuery, topK)
	}
	if minSimilarity < 0 || minSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity %v outside [0, 1]", ErrInvalidQuery, minSimilarity)
	}
	return nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// metadataJSON marshals chunk or profile metadata for a JSONB column.
func metadataJSON(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return b, nil
}
