package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civiq/civiq/internal/log"
)

// mockDB satisfies DB for tests that never reach the database. Every
// method fails loudly so validation paths are proven to short-circuit.
type mockDB struct{}

var errUnexpectedCall = errors.New("unexpected database call")

func (mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnexpectedCall
}

func (mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnexpectedCall
}

func (mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (mockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errUnexpectedCall
}

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errUnexpectedCall }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(mockDB{}, log.NewNop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func validChunks() []ChunkRecord {
	return []ChunkRecord{{
		Content:   "Article 1. All legislative powers.",
		Index:     0,
		Page:      1,
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
}

func TestNew_RequiresDB(t *testing.T) {
	if _, err := New(nil, log.NewNop()); err == nil {
		t.Error("expected error for nil database handle")
	}
}

func TestInsertDocument_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := Document{
		ID:         uuid.New(),
		Title:      "Constitution",
		DocType:    DocTypeConstitution,
		Content:    "full text",
		SourceFile: "constitution.txt",
	}

	tests := []struct {
		name    string
		mutate  func(*Document, *[]ChunkRecord)
		wantErr error
	}{
		{
			name:    "unknown doc type",
			mutate:  func(d *Document, _ *[]ChunkRecord) { d.DocType = "regulation" },
			wantErr: ErrInvalidDocType,
		},
		{
			name:    "no chunks",
			mutate:  func(_ *Document, c *[]ChunkRecord) { *c = nil },
			wantErr: ErrNoChunks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := doc
			chunks := validChunks()
			tt.mutate(&d, &chunks)

			err := s.InsertDocument(ctx, d, chunks)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("InsertDocument error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("nil document ID", func(t *testing.T) {
		d := doc
		d.ID = uuid.Nil
		if err := s.InsertDocument(ctx, d, validChunks()); err == nil {
			t.Error("expected error for nil document ID")
		}
	})
}

func TestSearchDocuments_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := DocumentQuery{
		Embedding:     []float32{0.1, 0.2},
		TopK:          5,
		MinSimilarity: 0.75,
	}

	tests := []struct {
		name    string
		mutate  func(*DocumentQuery)
		wantErr error
	}{
		{"empty embedding", func(q *DocumentQuery) { q.Embedding = nil }, ErrInvalidQuery},
		{"zero top_k", func(q *DocumentQuery) { q.TopK = 0 }, ErrInvalidQuery},
		{"negative top_k", func(q *DocumentQuery) { q.TopK = -3 }, ErrInvalidQuery},
		{"similarity above one", func(q *DocumentQuery) { q.MinSimilarity = 1.5 }, ErrInvalidQuery},
		{"negative similarity", func(q *DocumentQuery) { q.MinSimilarity = -0.1 }, ErrInvalidQuery},
		{"unknown doc type filter", func(q *DocumentQuery) { q.DocTypes = []string{"treaty"} }, ErrInvalidDocType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := base
			tt.mutate(&q)
			if _, err := s.SearchDocuments(ctx, q); !errors.Is(err, tt.wantErr) {
				t.Errorf("SearchDocuments error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchRepresentatives_Validation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SearchRepresentatives(context.Background(), RepresentativeQuery{
		Embedding:     []float32{0.1},
		TopK:          0,
		MinSimilarity: 0.7,
	})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("error = %v, want ErrInvalidQuery", err)
	}
}

func TestInsertRepresentative_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rep := Representative{ID: uuid.New(), Name: "Jordan Li"}

	t.Run("invalid content type", func(t *testing.T) {
		entries := []ProfileEntry{{ContentType: "voting_record", Content: "x", Embedding: []float32{1}}}
		if err := s.InsertRepresentative(ctx, rep, entries); !errors.Is(err, ErrInvalidContentType) {
			t.Errorf("error = %v, want ErrInvalidContentType", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		r := rep
		r.Name = ""
		if err := s.InsertRepresentative(ctx, r, nil); err == nil {
			t.Error("expected error for missing name")
		}
	})
}

func TestUpsertSummaries_RequireDocumentID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertBillSummary(ctx, BillSummary{}); err == nil {
		t.Error("expected error for nil document ID on bill summary")
	}
	if err := s.UpsertProceedingSummary(ctx, ProceedingSummary{}); err == nil {
		t.Error("expected error for nil document ID on proceeding summary")
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error(`nullable("") should be nil`)
	}
	if v := nullable("Preamble"); v == nil || *v != "Preamble" {
		t.Errorf("nullable(Preamble) = %v", v)
	}
}

func TestMetadataJSON(t *testing.T) {
	b, err := metadataJSON(nil)
	if err != nil {
		t.Fatalf("metadataJSON(nil) error: %v", err)
	}
	if string(b) != "{}" {
		t.Errorf("metadataJSON(nil) = %s, want {}", b)
	}

	b, err = metadataJSON(map[string]string{"district": "North"})
	if err != nil {
		t.Fatalf("metadataJSON error: %v", err)
	}
	if string(b) != `{"district":"North"}` {
		t.Errorf("metadataJSON = %s", b)
	}
}
