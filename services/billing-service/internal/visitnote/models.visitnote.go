// services/billing-service/internal/visitnote/models.visitnote.go
package visitnote

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VisitNote is the clinical note a bill is produced from.
// Finalized is a one-way latch: once true, items are frozen and a Billing exists.
type VisitNote struct {
	ID        uuid.UUID `db:"id"`
	VisitID   uuid.UUID `db:"visit_id"`
	Text      string    `db:"text"`
	Finalized bool      `db:"finalized"`
	CreatedAt time.Time `db:"created_at"`
}

// MaxQuantity bounds units per item. With pricing.MaxPriceCents it keeps every line total well inside int64.
const MaxQuantity = 10000

// BillableItem is one priced service on a note.
// UnitPriceCents is copied from the catalog when the item is added and never refreshed.
type BillableItem struct {
	ID             uuid.UUID `db:"id"`
	NoteID         uuid.UUID `db:"note_id"`
	RuleID         uuid.UUID `db:"rule_id"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
}

func (i BillableItem) LineTotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

// PreviewLine is a BillableItem joined with its rule name for display.
type PreviewLine struct {
	ItemID         uuid.UUID `db:"item_id"`
	RuleID         uuid.UUID `db:"rule_id"`
	Description    string    `db:"description"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	LineTotalCents int64     `db:"line_total_cents"`
}

type Preview struct {
	NoteID     uuid.UUID
	VisitID    uuid.UUID
	Finalized  bool
	Lines      []PreviewLine
	TotalCents int64
}

// NoteStore persists notes and their items.
// Methods must use the transaction carried in ctx when there is one.
type NoteStore interface {
	CreateNote(ctx context.Context, note *VisitNote) error
	GetNote(ctx context.Context, noteID uuid.UUID) (*VisitNote, error)
	// LockNote reads the note and holds its row lock until the surrounding transaction ends.
	LockNote(ctx context.Context, noteID uuid.UUID) (*VisitNote, error)

	GetItem(ctx context.Context, itemID uuid.UUID) (*BillableItem, error)
	// InsertItem returns domain ErrDuplicateItem when (note_id, rule_id) already exists.
	InsertItem(ctx context.Context, item *BillableItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ListItems(ctx context.Context, noteID uuid.UUID) ([]BillableItem, error)
	ListPreviewLines(ctx context.Context, noteID uuid.UUID) ([]PreviewLine, error)
}
