//services/billing-service/internal/invoice/invoice_finalizer.go

package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/store"
	"github.com/Tanmoy095/ClinicLedger/shared/contracts"
	"github.com/google/uuid"
)

// EventEmitter publishes best-effort notifications after commit.
type EventEmitter interface {
	Emit(ctx context.Context, key string, event any)
}

// Finalizer closes the gate of a visit note and issues its Billing.
type Finalizer struct {
	store  FinalizeStore
	tx     store.TransactionManager
	events EventEmitter
	logger *slog.Logger
	now    func() time.Time
}

func NewFinalizer(fs FinalizeStore, tx store.TransactionManager, events EventEmitter, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		store:  fs,
		tx:     tx,
		events: events,
		logger: logger.With(slog.String("component", "Finalizer")),
		now:    time.Now,
	}
}

// Finalize transitions a note from Open -> Locked and creates its Billing.
// Latch, total and billing insert commit together; a concurrent item edit either lands
// before the latch (and is counted) or observes the lock and fails.
func (f *Finalizer) Finalize(ctx context.Context, noteID uuid.UUID) (*Billing, error) {
	var billing *Billing

	err := f.tx.RunInTx(ctx, func(ctx context.Context) error {
		// 1. State transition (the gatekeeper). CAS on the latch.
		if err := f.store.CloseNote(ctx, noteID); err != nil {
			return err
		}

		// 2. Total from the snapshot prices, read after the latch so nothing can change under us.
		total, count, err := f.store.SumItems(ctx, noteID)
		if err != nil {
			return fmt.Errorf("failed to total items: %w", err)
		}

		// 3. Integrity validation.
		if total < 0 {
			return fmt.Errorf("integrity violation: negative total amount %d", total)
		}

		billing = &Billing{
			ID:         uuid.New(),
			NoteID:     noteID,
			TotalCents: total,
			CreatedAt:  f.now().UTC(),
		}
		if err := f.store.CreateBilling(ctx, billing); err != nil {
			return fmt.Errorf("failed to create billing: %w", err)
		}

		f.logger.InfoContext(ctx, "visit note finalized",
			slog.String("note_id", noteID.String()),
			slog.String("billing_id", billing.ID.String()),
			slog.Int("items", count),
			slog.Int64("total_cents", total))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if f.events != nil {
		f.events.Emit(ctx, billing.ID.String(), contracts.BillingFinalized{
			Type:       contracts.EventBillingFinalized,
			BillingID:  billing.ID.String(),
			NoteID:     noteID.String(),
			TotalCents: billing.TotalCents,
			OccurredAt: billing.CreatedAt,
		})
	}
	return billing, nil
}
