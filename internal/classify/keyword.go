package classify

import (
	"context"
	"strings"
)

// keywordTable maps lowercase substrings to the entity type they signal.
// Order within each list does not matter; matching is substring-based
// over the lowercased query.
var keywordTable = map[EntityType][]string{
	EntityRepresentative: {
		"representative", "member of", "minister", "deputy",
		"who represents", "my mp", "constituency", "riding",
		"district", "party", "elected", "contact", "email", "committee",
	},
	EntityBill: {
		"bill", "amendment", "reading", "proposed law", "passage",
	},
	EntityDocument: {
		"constitution", "statute", "law", "act", "article", "section",
		"right", "proceeding", "sitting", "debate",
	},
}

// Keyword is a deterministic classifier driven by a dispatch table. It
// needs no model and always returns the same tags for the same query.
type Keyword struct{}

// NewKeyword creates the keyword classifier.
func NewKeyword() *Keyword { return &Keyword{} }

// Classify matches the query against the keyword table. Queries matching
// nothing fall back to document retrieval.
func (*Keyword) Classify(_ context.Context, query string) ([]EntityType, error) {
	q := strings.ToLower(query)

	var tags []EntityType
	// Fixed check order keeps output deterministic.
	for _, t := range []EntityType{EntityDocument, EntityRepresentative, EntityBill} {
		for _, kw := range keywordTable[t] {
			if strings.Contains(q, kw) {
				tags = append(tags, t)
				break
			}
		}
	}
	if len(tags) == 0 {
		return Fallback(), nil
	}
	return tags, nil
}
