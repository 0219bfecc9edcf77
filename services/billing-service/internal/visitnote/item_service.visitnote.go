// services/billing-service/internal/visitnote/item_service.visitnote.go
package visitnote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/store"
	"github.com/google/uuid"
)

// ItemService owns the billable items of a note while its gate is open.
type ItemService struct {
	notes   NoteStore
	catalog pricing.Catalog
	tx      store.TransactionManager
	logger  *slog.Logger
}

func NewItemService(notes NoteStore, catalog pricing.Catalog, tx store.TransactionManager, logger *slog.Logger) *ItemService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemService{
		notes:   notes,
		catalog: catalog,
		tx:      tx,
		logger:  logger.With(slog.String("component", "ItemService")),
	}
}

// CreateNote opens a note for a visit. A visit has at most one note.
func (s *ItemService) CreateNote(ctx context.Context, visitID uuid.UUID, text string) (*VisitNote, error) {
	if visitID == uuid.Nil {
		return nil, fmt.Errorf("%w: visit id is required", domainErr.ErrInvalidInput)
	}
	note := &VisitNote{
		ID:      uuid.New(),
		VisitID: visitID,
		Text:    strings.TrimSpace(text),
	}
	if err := s.notes.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// AddItem snapshots the catalog price of ruleID onto a new item of noteID.
func (s *ItemService) AddItem(ctx context.Context, noteID, ruleID uuid.UUID, quantity int) (*BillableItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	// External lookup happens before the transaction so no row lock is held across it.
	rule, err := s.catalog.LookupRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.PriceCents > pricing.MaxPriceCents {
		return nil, fmt.Errorf("%w: rule %s is priced above the allowed maximum", domainErr.ErrInvalidInput, ruleID)
	}

	item := &BillableItem{
		ID:             uuid.New(),
		NoteID:         noteID,
		RuleID:         ruleID,
		Quantity:       quantity,
		UnitPriceCents: rule.PriceCents,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.openNote(ctx, noteID); err != nil {
			return err
		}
		return s.notes.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added",
		slog.String("note_id", noteID.String()),
		slog.String("rule_id", ruleID.String()),
		slog.Int("quantity", quantity),
		slog.Int64("unit_price_cents", item.UnitPriceCents))
	return item, nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", domainErr.ErrInvalidInput, MaxQuantity)
	}
	return nil
}

// UpdateQuantity changes how many units of an item were delivered. The unit price stays as snapshotted.
func (s *ItemService) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*BillableItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var updated *BillableItem
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		item, err := s.notes.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.openNote(ctx, item.NoteID); err != nil {
			return err
		}
		if err := s.notes.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			return err
		}
		item.Quantity = quantity
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *ItemService) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		item, err := s.notes.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if _, err := s.openNote(ctx, item.NoteID); err != nil {
			return err
		}
		return s.notes.DeleteItem(ctx, itemID)
	})
}

// ListByNote returns the items of a note in insertion order.
func (s *ItemService) ListByNote(ctx context.Context, noteID uuid.UUID) ([]BillableItem, error) {
	if _, err := s.notes.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	return s.notes.ListItems(ctx, noteID)
}

// Preview shows the lines and total a finalize would produce right now.
func (s *ItemService) Preview(ctx context.Context, noteID uuid.UUID) (*Preview, error) {
	note, err := s.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	lines, err := s.notes.ListPreviewLines(ctx, noteID)
	if err != nil {
		return nil, err
	}
	p := &Preview{
		NoteID:    note.ID,
		VisitID:   note.VisitID,
		Finalized: note.Finalized,
		Lines:     lines,
	}
	for _, l := range lines {
		p.TotalCents += l.LineTotalCents
	}
	return p, nil
}

// openNote locks the note row and rejects the call if the gate is closed.
func (s *ItemService) openNote(ctx context.Context, noteID uuid.UUID) (*VisitNote, error) {
	note, err := s.notes.LockNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note.Finalized {
		return nil, fmt.Errorf("%w: note %s", domainErr.ErrNoteLocked, noteID)
	}
	return note, nil
}
