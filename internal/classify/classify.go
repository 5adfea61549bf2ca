// Package classify maps a user query to the entity types worth
// retrieving from before generation.
//
// Two implementations exist: Model asks a language model at temperature
// zero and parses its tag list strictly, Keyword uses a deterministic
// dispatch table. Both guarantee a non-empty result; anything the model
// variant cannot parse degrades to document-only retrieval rather than
// failing the query.
package classify

import (
	"context"
	"strings"
)

// EntityType identifies one retrieval source.
type EntityType string

const (
	// EntityDocument retrieves from the general document corpus.
	EntityDocument EntityType = "document"

	// EntityRepresentative retrieves from representative profiles.
	EntityRepresentative EntityType = "representative"

	// EntityBill retrieves from the document corpus restricted to bills.
	EntityBill EntityType = "bill"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityDocument, EntityRepresentative, EntityBill:
		return true
	}
	return false
}

// Fallback is the classification used when intent cannot be determined.
func Fallback() []EntityType {
	return []EntityType{EntityDocument}
}

// Classifier decides which entity types a query should retrieve from.
// Implementations never return an empty set.
type Classifier interface {
	Classify(ctx context.Context, query string) ([]EntityType, error)
}

// parseTags parses a comma or newline separated tag list. It is strict:
// any unknown tag invalidates the whole list, because a partially
// understood answer from the model is not trustworthy.
func parseTags(raw string) ([]EntityType, bool) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	seen := make(map[EntityType]bool, len(fields))
	var tags []EntityType
	for _, f := range fields {
		tag := EntityType(strings.ToLower(strings.TrimSpace(f)))
		if tag == "" {
			continue
		}
		if !tag.Valid() {
			return nil, false
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, false
	}
	return tags, true
}
