//go:build integration
// +build integration

package store

import (
	"context"
	"log"
	"math"
	"os"
	"testing"

	"github.com/google/uuid"

	civiqlog "github.com/civiq/civiq/internal/log"
	"github.com/civiq/civiq/internal/testutil"
)

var sharedDB *testutil.TestDBContainer

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	sharedDB, cleanup, err = testutil.SetupTestDBForMain()
	if err != nil {
		log.Fatalf("starting test database: %v", err)
	}
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupIntegrationStore(t *testing.T) *Store {
	t.Helper()
	testutil.CleanTables(t, sharedDB.Pool)

	s, err := New(sharedDB.Pool, civiqlog.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

const dim = 1536

// vectorAt returns a unit vector whose cosine similarity to vectorAt(0)
// is cos(theta). This gives tests exact control over similarity scores.
func vectorAt(theta float64) []float32 {
	v := make([]float32, dim)
	v[0] = float32(math.Cos(theta))
	v[1] = float32(math.Sin(theta))
	return v
}

// vectorWithSimilarity returns a vector scoring exactly sim against
// vectorAt(0).
func vectorWithSimilarity(sim float64) []float32 {
	return vectorAt(math.Acos(sim))
}

func insertTestDocument(t *testing.T, s *Store, docType, sourceFile string, chunks []ChunkRecord) uuid.UUID {
	t.Helper()
	id := uuid.New()
	doc := Document{
		ID:         id,
		Title:      "Test " + sourceFile,
		DocType:    docType,
		Content:    "full document text",
		SourceFile: sourceFile,
	}
	if err := s.InsertDocument(context.Background(), doc, chunks); err != nil {
		t.Fatalf("InsertDocument(%s) error: %v", sourceFile, err)
	}
	return id
}

func TestIntegration_InsertAndSearchDocuments(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	insertTestDocument(t, s, DocTypeConstitution, "constitution.txt", []ChunkRecord{
		{Content: "strong match", Index: 0, Page: 1, Section: "Preamble", Embedding: vectorWithSimilarity(0.95)},
		{Content: "weak match", Index: 1, Page: 2, Embedding: vectorWithSimilarity(0.50)},
	})
	insertTestDocument(t, s, DocTypeStatute, "statute.txt", []ChunkRecord{
		{Content: "medium match", Index: 0, Page: 1, Embedding: vectorWithSimilarity(0.85)},
	})

	hits, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:     vectorAt(0),
		TopK:          10,
		MinSimilarity: 0.75,
	})
	if err != nil {
		t.Fatalf("SearchDocuments error: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (below-threshold chunk excluded)", len(hits))
	}
	if hits[0].Content != "strong match" || hits[1].Content != "medium match" {
		t.Errorf("hits out of order: %q, %q", hits[0].Content, hits[1].Content)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Errorf("similarity not descending: %v then %v", hits[0].Similarity, hits[1].Similarity)
	}

	// Provenance fields carried through the join.
	if hits[0].Title != "Test constitution.txt" || hits[0].DocType != DocTypeConstitution {
		t.Errorf("missing parent fields: %+v", hits[0])
	}
	if hits[0].Section != "Preamble" || hits[0].Page != 1 || hits[0].ChunkIndex != 0 {
		t.Errorf("missing chunk provenance: %+v", hits[0])
	}
}

func TestIntegration_SearchDocuments_TypeFilter(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	insertTestDocument(t, s, DocTypeBill, "bill_12.txt", []ChunkRecord{
		{Content: "bill text", Index: 0, Page: 1, Embedding: vectorWithSimilarity(0.9)},
	})
	insertTestDocument(t, s, DocTypeStatute, "statute.txt", []ChunkRecord{
		{Content: "statute text", Index: 0, Page: 1, Embedding: vectorWithSimilarity(0.9)},
	})

	hits, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:     vectorAt(0),
		DocTypes:      []string{DocTypeBill},
		TopK:          10,
		MinSimilarity: 0.5,
	})
	if err != nil {
		t.Fatalf("SearchDocuments error: %v", err)
	}
	if len(hits) != 1 || hits[0].DocType != DocTypeBill {
		t.Errorf("type filter failed: %+v", hits)
	}
}

func TestIntegration_SearchDocuments_TopKLimit(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	var chunks []ChunkRecord
	for i := 0; i < 5; i++ {
		chunks = append(chunks, ChunkRecord{
			Content:   "chunk",
			Index:     i,
			Page:      1,
			Embedding: vectorWithSimilarity(0.9),
		})
	}
	insertTestDocument(t, s, DocTypeStatute, "statute.txt", chunks)

	hits, err := s.SearchDocuments(ctx, DocumentQuery{
		Embedding:     vectorAt(0),
		TopK:          3,
		MinSimilarity: 0.5,
	})
	if err != nil {
		t.Fatalf("SearchDocuments error: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want TopK=3", len(hits))
	}
	// Equal scores come back in insertion order.
	for i, h := range hits {
		if h.ChunkIndex != i {
			t.Errorf("hit %d has chunk index %d, want insertion order", i, h.ChunkIndex)
		}
	}
}

func TestIntegration_ExistsBySourceFile(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	exists, err := s.ExistsBySourceFile(ctx, "constitution.txt")
	if err != nil {
		t.Fatalf("ExistsBySourceFile error: %v", err)
	}
	if exists {
		t.Error("source file should not exist before ingestion")
	}

	insertTestDocument(t, s, DocTypeConstitution, "constitution.txt", []ChunkRecord{
		{Content: "text", Index: 0, Page: 1, Embedding: vectorAt(0)},
	})

	exists, err = s.ExistsBySourceFile(ctx, "constitution.txt")
	if err != nil {
		t.Fatalf("ExistsBySourceFile error: %v", err)
	}
	if !exists {
		t.Error("source file should exist after ingestion")
	}

	// The unique constraint rejects a second ingestion of the same file.
	err = s.InsertDocument(ctx, Document{
		ID:         uuid.New(),
		Title:      "dup",
		DocType:    DocTypeConstitution,
		Content:    "text",
		SourceFile: "constitution.txt",
	}, []ChunkRecord{{Content: "text", Index: 0, Page: 1, Embedding: vectorAt(0)}})
	if err == nil {
		t.Error("expected unique violation for duplicate source file")
	}
}

func TestIntegration_InsertDocument_AtomicOnChunkFailure(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	// The second chunk's vector has the wrong dimensionality, which the
	// VECTOR(1536) column rejects. The document row must roll back too.
	err := s.InsertDocument(ctx, Document{
		ID:         uuid.New(),
		Title:      "partial",
		DocType:    DocTypeStatute,
		Content:    "text",
		SourceFile: "partial.txt",
	}, []ChunkRecord{
		{Content: "good", Index: 0, Page: 1, Embedding: vectorAt(0)},
		{Content: "bad", Index: 1, Page: 1, Embedding: []float32{1, 2, 3}},
	})
	if err == nil {
		t.Fatal("expected error for wrong-dimension chunk")
	}

	exists, err := s.ExistsBySourceFile(ctx, "partial.txt")
	if err != nil {
		t.Fatalf("ExistsBySourceFile error: %v", err)
	}
	if exists {
		t.Error("document persisted despite failed chunk write")
	}
}

func TestIntegration_DeleteDocument_Cascades(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	id := insertTestDocument(t, s, DocTypeBill, "bill.txt", []ChunkRecord{
		{Content: "text", Index: 0, Page: 1, Embedding: vectorAt(0)},
	})
	if err := s.UpsertBillSummary(ctx, BillSummary{
		DocumentID: id, Summary: "a bill", Status: SummaryStatusComplete,
	}); err != nil {
		t.Fatalf("UpsertBillSummary error: %v", err)
	}

	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("DeleteDocument error: %v", err)
	}

	var chunkCount, summaryCount int
	if err := sharedDB.Pool.QueryRow(ctx,
		`SELECT count(*) FROM document_embeddings WHERE document_id = $1`, id).Scan(&chunkCount); err != nil {
		t.Fatalf("counting chunks: %v", err)
	}
	if err := sharedDB.Pool.QueryRow(ctx,
		`SELECT count(*) FROM bill_summaries WHERE document_id = $1`, id).Scan(&summaryCount); err != nil {
		t.Fatalf("counting summaries: %v", err)
	}
	if chunkCount != 0 || summaryCount != 0 {
		t.Errorf("cascade left %d chunks, %d summaries", chunkCount, summaryCount)
	}
}

func TestIntegration_Representatives(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	rep := Representative{
		ID:           uuid.New(),
		Name:         "Jordan Li",
		Party:        "Civic Alliance",
		Constituency: "Riverside North",
		Province:     "Ontario",
		Email:        "jordan.li@assembly.example",
	}
	entries := []ProfileEntry{
		{
			ContentType: ContentTypeProfile,
			Content:     "Jordan Li represents Riverside North.",
			Metadata:    map[string]string{"role": "member"},
			Embedding:   vectorWithSimilarity(0.92),
		},
		{
			ContentType: ContentTypeCommittees,
			Content:     "Member of the finance committee.",
			Embedding:   vectorWithSimilarity(0.40),
		},
	}
	if err := s.InsertRepresentative(ctx, rep, entries); err != nil {
		t.Fatalf("InsertRepresentative error: %v", err)
	}

	hits, err := s.SearchRepresentatives(ctx, RepresentativeQuery{
		Embedding:     vectorAt(0),
		TopK:          10,
		MinSimilarity: 0.70,
	})
	if err != nil {
		t.Fatalf("SearchRepresentatives error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1 (below-threshold entry excluded)", len(hits))
	}

	h := hits[0]
	if h.Name != rep.Name || h.Party != rep.Party || h.Constituency != rep.Constituency {
		t.Errorf("missing parent fields: %+v", h)
	}
	if h.ContentType != ContentTypeProfile {
		t.Errorf("content type = %q, want profile", h.ContentType)
	}
	if h.Metadata["role"] != "member" {
		t.Errorf("metadata lost: %v", h.Metadata)
	}
}

func TestIntegration_SummaryUpsertOverwrites(t *testing.T) {
	s := setupIntegrationStore(t)
	ctx := context.Background()

	id := insertTestDocument(t, s, DocTypeProceeding, "sitting_42.txt", []ChunkRecord{
		{Content: "text", Index: 0, Page: 1, Embedding: vectorAt(0)},
	})

	if err := s.UpsertProceedingSummary(ctx, ProceedingSummary{
		DocumentID: id, Status: SummaryStatusFailed,
	}); err != nil {
		t.Fatalf("first upsert error: %v", err)
	}
	if err := s.UpsertProceedingSummary(ctx, ProceedingSummary{
		DocumentID: id, Summary: "The assembly debated the budget.", Status: SummaryStatusComplete,
	}); err != nil {
		t.Fatalf("second upsert error: %v", err)
	}

	var summary, status string
	err := sharedDB.Pool.QueryRow(ctx,
		`SELECT summary, status FROM proceeding_summaries WHERE document_id = $1`, id,
	).Scan(&summary, &status)
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	if status != SummaryStatusComplete || summary == "" {
		t.Errorf("summary = %q status = %q, want overwritten complete record", summary, status)
	}
}
