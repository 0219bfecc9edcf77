// services/billing-service/internal/store/sqlstore/finalize_store.sqlstore.go
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/google/uuid"
)

// FinalizeStore implements invoice.FinalizeStore.
type FinalizeStore struct {
	db *DB
}

func NewFinalizeStore(db *DB) *FinalizeStore {
	return &FinalizeStore{db: db}
}

// CloseNote flips the latch only when it is still open, so two concurrent finalizations
// cannot both succeed.
func (s *FinalizeStore) CloseNote(ctx context.Context, noteID uuid.UUID) error {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE visit_notes SET finalized = TRUE WHERE id = $1 AND finalized = FALSE`, noteID)
	if err != nil {
		return classify(fmt.Errorf("db: failed to close visit note: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either the note does not exist or it was already closed.
	var finalized bool
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &finalized, `SELECT finalized FROM visit_notes WHERE id = $1`, noteID); err != nil {
		return rowErr(err, "visit note", noteID)
	}
	return domainErr.ErrAlreadyFinalized
}

func (s *FinalizeStore) SumItems(ctx context.Context, noteID uuid.UUID) (int64, int, error) {
	var row struct {
		Total int64 `db:"total_cents"`
		Count int   `db:"item_count"`
	}
	query := `
		SELECT CAST(COALESCE(SUM(quantity * unit_price_cents), 0) AS BIGINT) AS total_cents,
		       COUNT(*) AS item_count
		FROM visit_note_items
		WHERE note_id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &row, query, noteID); err != nil {
		return 0, 0, classify(fmt.Errorf("db: failed to sum items: %w", err))
	}
	return row.Total, row.Count, nil
}

func (s *FinalizeStore) CreateBilling(ctx context.Context, b *invoice.Billing) error {
	query := `
		INSERT INTO billings (id, note_id, total_cents, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := s.db.conn(ctx).ExecContext(ctx, query, b.ID, b.NoteID, b.TotalCents, b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "billings_note_id_key") {
			return domainErr.ErrAlreadyFinalized
		}
		return classify(fmt.Errorf("db: failed to create billing: %w", err))
	}
	return nil
}
