package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Profile content types accepted by the representative_embeddings table.
const (
	ContentTypeProfile    = "profile"
	ContentTypeBio        = "bio"
	ContentTypeContact    = "contact"
	ContentTypeActivities = "activities"
	ContentTypeCommittees = "committees"
)

// ErrInvalidContentType is returned for profile content types outside the
// schema's check constraint.
var ErrInvalidContentType = errors.New("invalid profile content type")

// Representative is one elected official.
type Representative struct {
	ID           uuid.UUID
	Name         string
	Party        string
	Constituency string
	Province     string
	Email        string
}

// ProfileEntry is one embedded facet of a representative's profile.
type ProfileEntry struct {
	ContentType string
	Content     string
	Metadata    map[string]string
	Embedding   []float32
}

// RepresentativeQuery describes a representative similarity search.
type RepresentativeQuery struct {
	Embedding     []float32
	TopK          int
	MinSimilarity float64
}

// RepresentativeHit is one retrieved profile entry with its parent
// representative fields carried along.
type RepresentativeHit struct {
	RepresentativeID uuid.UUID
	Name             string
	Party            string
	Constituency     string
	Province         string
	ContentType      string
	Content          string
	Metadata         map[string]string
	Similarity       float64
}

func validContentType(t string) bool {
	switch t {
	case ContentTypeProfile, ContentTypeBio, ContentTypeContact,
		ContentTypeActivities, ContentTypeCommittees:
		return true
	}
	return false
}

// InsertRepresentative persists a representative and all of its embedded
// profile entries in a single transaction.
func (s *Store) InsertRepresentative(ctx context.Context, rep Representative, entries []ProfileEntry) error {
	if rep.ID == uuid.Nil {
		return fmt.Errorf("representative ID is required")
	}
	if rep.Name == "" {
		return fmt.Errorf("representative name is required")
	}
	for _, e := range entries {
		if !validContentType(e.ContentType) {
			return fmt.Errorf("%w: %q", ErrInvalidContentType, e.ContentType)
		}
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
		`INSERT INTO representatives (id, name, party, constituency, province, email)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rep.ID, rep.Name, rep.Party, rep.Constituency, rep.Province, rep.Email,
	)
	if err != nil {
		return fmt.Errorf("inserting representative %q: %w", rep.Name, err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		meta, metaErr := metadataJSON(e.Metadata)
		if metaErr != nil {
			return metaErr
		}
		batch.Queue(
			`INSERT INTO representative_embeddings
			 (id, representative_id, content, content_type, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), rep.ID, e.Content, e.ContentType, pgvector.NewVector(e.Embedding), meta,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for _, e := range entries {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return fmt.Errorf("inserting %s entry for %q: %w", e.ContentType, rep.Name, execErr)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing profile batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing representative %q: %w", rep.Name, err)
	}

	s.logger.Debug("inserted representative", "id", rep.ID, "name", rep.Name, "entries", len(entries))
	return nil
}

// SearchRepresentatives retrieves the profile entries most similar to the
// query vector, joined with their parent representatives.
func (s *Store) SearchRepresentatives(ctx context.Context, q RepresentativeQuery) ([]RepresentativeHit, error) {
	if err := validateQuery(len(q.Embedding), q.TopK, q.MinSimilarity); err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(q.Embedding)

	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.name, r.party, r.constituency, r.province,
		        e.content_type, e.content, e.metadata,
		        1 - (e.embedding <=> $1) AS similarity
		 FROM representative_embeddings e
		 JOIN representatives r ON r.id = e.representative_id
		 WHERE 1 - (e.embedding <=> $1) >= $2
		 ORDER BY e.embedding <=> $1, e.created_at, e.id
		 LIMIT $3`,
		vec, q.MinSimilarity, q.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching representatives: %w", err)
	}
	defer rows.Close()

	var hits []RepresentativeHit
	for rows.Next() {
		var h RepresentativeHit
		var meta []byte
		if err := rows.Scan(&h.RepresentativeID, &h.Name, &h.Party, &h.Constituency,
			&h.Province, &h.ContentType, &h.Content, &meta, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning representative hit: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				s.logger.Warn("unparseable profile metadata",
					"representative_id", h.RepresentativeID, "error", err)
				h.Metadata = map[string]string{}
			}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading representative hits: %w", err)
	}
	return hits, nil
}
