package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Summary generation status values.
const (
	SummaryStatusPending  = "pending"
	SummaryStatusComplete = "complete"
	SummaryStatusFailed   = "failed"
)

// BillSummary is the derived record created after a bill document is
// persisted. Status records whether summary generation succeeded.
type BillSummary struct {
	DocumentID  uuid.UUID
	Summary     string
	BillNumber  string
	Status      string
	PassageDate *time.Time
}

// ProceedingSummary is the derived record for a proceeding document.
type ProceedingSummary struct {
	DocumentID  uuid.UUID
	Summary     string
	Status      string
	SessionDate *time.Time
}

// UpsertBillSummary writes the bill's derived summary record, replacing
// any previous one for the same document. Re-running ingestion after a
// failed generation overwrites the failed record.
func (s *Store) UpsertBillSummary(ctx context.Context, sum BillSummary) error {
	if sum.DocumentID == uuid.Nil {
		return fmt.Errorf("document ID is required")
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO bill_summaries (id, document_id, summary, bill_number, status, passage_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (document_id) DO UPDATE
		 SET summary = EXCLUDED.summary, bill_number = EXCLUDED.bill_number,
		     status = EXCLUDED.status, passage_date = EXCLUDED.passage_date`,
		uuid.New(), sum.DocumentID, sum.Summary, sum.BillNumber, sum.Status, sum.PassageDate,
	)
	if err != nil {
		return fmt.Errorf("upserting bill summary for %s: %w", sum.DocumentID, err)
	}
	return nil
}

// UpsertProceedingSummary writes the proceeding's derived summary record.
func (s *Store) UpsertProceedingSummary(ctx context.Context, sum ProceedingSummary) error {
	if sum.DocumentID == uuid.Nil {
		return fmt.Errorf("document ID is required")
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO proceeding_summaries (id, document_id, summary, status, session_date)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id) DO UPDATE
		 SET summary = EXCLUDED.summary, status = EXCLUDED.status,
		     session_date = EXCLUDED.session_date`,
		uuid.New(), sum.DocumentID, sum.Summary, sum.Status, sum.SessionDate,
	)
	if err != nil {
		return fmt.Errorf("upserting proceeding summary for %s: %w", sum.DocumentID, err)
	}
	return nil
}
