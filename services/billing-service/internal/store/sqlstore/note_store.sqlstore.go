// services/billing-service/internal/store/sqlstore/note_store.sqlstore.go
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/visitnote"
	"github.com/google/uuid"
)

// NoteStore implements visitnote.NoteStore.
type NoteStore struct {
	db *DB
}

func NewNoteStore(db *DB) *NoteStore {
	return &NoteStore{db: db}
}

const noteColumns = `id, visit_id, text, finalized, created_at`

func (s *NoteStore) CreateNote(ctx context.Context, note *visitnote.VisitNote) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO visit_notes (id, visit_id, text, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.conn(ctx).ExecContext(ctx, query, note.ID, note.VisitID, note.Text, note.Finalized, note.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "visit_notes_visit_id_key") {
			return fmt.Errorf("%w: visit %s already has a note", domainErr.ErrConflict, note.VisitID)
		}
		return classify(fmt.Errorf("db: failed to create visit note: %w", err))
	}
	return nil
}

func (s *NoteStore) GetNote(ctx context.Context, noteID uuid.UUID) (*visitnote.VisitNote, error) {
	var note visitnote.VisitNote
	query := `SELECT ` + noteColumns + ` FROM visit_notes WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &note, query, noteID); err != nil {
		return nil, rowErr(err, "visit note", noteID)
	}
	return &note, nil
}

// LockNote must be called inside RunInTx; the lock is released on commit or rollback.
func (s *NoteStore) LockNote(ctx context.Context, noteID uuid.UUID) (*visitnote.VisitNote, error) {
	var note visitnote.VisitNote
	query := `SELECT ` + noteColumns + ` FROM visit_notes WHERE id = $1` + s.db.forUpdate()
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &note, query, noteID); err != nil {
		return nil, rowErr(err, "visit note", noteID)
	}
	return &note, nil
}

const itemColumns = `id, note_id, rule_id, quantity, unit_price_cents`

func (s *NoteStore) GetItem(ctx context.Context, itemID uuid.UUID) (*visitnote.BillableItem, error) {
	var item visitnote.BillableItem
	query := `SELECT ` + itemColumns + ` FROM visit_note_items WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &item, query, itemID); err != nil {
		return nil, rowErr(err, "item", itemID)
	}
	return &item, nil
}

func (s *NoteStore) InsertItem(ctx context.Context, item *visitnote.BillableItem) error {
	query := `
		INSERT INTO visit_note_items (id, note_id, rule_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.conn(ctx).ExecContext(ctx, query, item.ID, item.NoteID, item.RuleID, item.Quantity, item.UnitPriceCents)
	if err != nil {
		if isUniqueViolation(err, "visit_note_items_note_rule_key") {
			return domainErr.ErrDuplicateItem
		}
		return classify(fmt.Errorf("db: failed to insert item: %w", err))
	}
	return nil
}

func (s *NoteStore) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	res, err := s.db.conn(ctx).ExecContext(ctx, `UPDATE visit_note_items SET quantity = $1 WHERE id = $2`, quantity, itemID)
	if err != nil {
		return classify(fmt.Errorf("db: failed to update item quantity: %w", err))
	}
	return expectOne(res, "item", itemID)
}

func (s *NoteStore) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	res, err := s.db.conn(ctx).ExecContext(ctx, `DELETE FROM visit_note_items WHERE id = $1`, itemID)
	if err != nil {
		return classify(fmt.Errorf("db: failed to delete item: %w", err))
	}
	return expectOne(res, "item", itemID)
}

func (s *NoteStore) ListItems(ctx context.Context, noteID uuid.UUID) ([]visitnote.BillableItem, error) {
	items := []visitnote.BillableItem{}
	query := `SELECT ` + itemColumns + ` FROM visit_note_items WHERE note_id = $1 ORDER BY seq`
	if err := sqlx.SelectContext(ctx, s.db.conn(ctx), &items, query, noteID); err != nil {
		return nil, classify(fmt.Errorf("db: failed to list items: %w", err))
	}
	return items, nil
}

// ListPreviewLines joins items with the rule name. Prices are the snapshots on the items.
func (s *NoteStore) ListPreviewLines(ctx context.Context, noteID uuid.UUID) ([]visitnote.PreviewLine, error) {
	lines := []visitnote.PreviewLine{}
	query := `
		SELECT i.id AS item_id,
		       i.rule_id,
		       r.name AS description,
		       i.quantity,
		       i.unit_price_cents,
		       CAST(i.quantity * i.unit_price_cents AS BIGINT) AS line_total_cents
		FROM visit_note_items i
		JOIN rules r ON r.id = i.rule_id
		WHERE i.note_id = $1
		ORDER BY i.seq`
	if err := sqlx.SelectContext(ctx, s.db.conn(ctx), &lines, query, noteID); err != nil {
		return nil, classify(fmt.Errorf("db: failed to list preview lines: %w", err))
	}
	return lines, nil
}
