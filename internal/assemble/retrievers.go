package assemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/civiq/civiq/internal/classify"
	"github.com/civiq/civiq/internal/store"
)

// DocumentSearcher is the document side of the vector store.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, q store.DocumentQuery) ([]store.DocumentHit, error)
}

// RepresentativeSearcher is the representative side of the vector store.
type RepresentativeSearcher interface {
	SearchRepresentatives(ctx context.Context, q store.RepresentativeQuery) ([]store.RepresentativeHit, error)
}

// DocumentRetriever serves document-backed entity types. The bill
// retriever is the same machinery restricted to bill documents.
type DocumentRetriever struct {
	searcher      DocumentSearcher
	entity        classify.EntityType
	label         string
	docTypes      []string
	topK          int
	minSimilarity float64
}

// NewDocumentRetriever retrieves across the whole document corpus.
func NewDocumentRetriever(searcher DocumentSearcher, topK int, minSimilarity float64) *DocumentRetriever {
	return &DocumentRetriever{
		searcher:      searcher,
		entity:        classify.EntityDocument,
		label:         "Legal and parliamentary documents",
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

// NewBillRetriever retrieves from bill documents only.
func NewBillRetriever(searcher DocumentSearcher, topK int, minSimilarity float64) *DocumentRetriever {
	return &DocumentRetriever{
		searcher:      searcher,
		entity:        classify.EntityBill,
		label:         "Bills",
		docTypes:      []string{store.DocTypeBill},
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

func (r *DocumentRetriever) Entity() classify.EntityType { return r.entity }

func (r *DocumentRetriever) Label() string { return r.label }

// Retrieve searches document chunks and formats each hit with its
// provenance so generation can cite it.
func (r *DocumentRetriever) Retrieve(ctx context.Context, embedding []float32) (string, error) {
	hits, err := r.searcher.SearchDocuments(ctx, store.DocumentQuery{
		Embedding:     embedding,
		DocTypes:      r.docTypes,
		TopK:          r.topK,
		MinSimilarity: r.minSimilarity,
	})
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s, page %d", h.DocType, h.Title, h.Page)
		if h.Section != "" {
			fmt.Fprintf(&b, ", %s", h.Section)
		}
		fmt.Fprintf(&b, "\n%s", h.Content)
	}
	return b.String(), nil
}

// RepresentativeRetriever serves the representative entity type.
type RepresentativeRetriever struct {
	searcher      RepresentativeSearcher
	topK          int
	minSimilarity float64
}

// NewRepresentativeRetriever retrieves from representative profiles.
func NewRepresentativeRetriever(searcher RepresentativeSearcher, topK int, minSimilarity float64) *RepresentativeRetriever {
	return &RepresentativeRetriever{
		searcher:      searcher,
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

func (*RepresentativeRetriever) Entity() classify.EntityType { return classify.EntityRepresentative }

func (*RepresentativeRetriever) Label() string { return "Elected representatives" }

// Retrieve searches representative profile entries and formats each hit
// with the official's identity.
func (r *RepresentativeRetriever) Retrieve(ctx context.Context, embedding []float32) (string, error) {
	hits, err := r.searcher.SearchRepresentatives(ctx, store.RepresentativeQuery{
		Embedding:     embedding,
		TopK:          r.topK,
		MinSimilarity: r.minSimilarity,
	})
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s (%s", h.Name, h.Party)
		if h.Constituency != "" {
			fmt.Fprintf(&b, ", %s", h.Constituency)
		}
		if h.Province != "" {
			fmt.Fprintf(&b, ", %s", h.Province)
		}
		fmt.Fprintf(&b, ") [%s]\n%s", h.ContentType, h.Content)
	}
	return b.String(), nil
}
