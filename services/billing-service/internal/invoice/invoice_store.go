// services/billing-service/internal/invoice/invoice_store.go

package invoice

import (
	"context"

	"github.com/google/uuid"
)

// FinalizeStore handles persistence for the finalization gate.
// Every method must run on the transaction carried in ctx.
type FinalizeStore interface {
	// CloseNote flips the note latch with a compare-and-swap (WHERE finalized = FALSE).
	// Returns domain ErrAlreadyFinalized when the latch was already set and ErrNotFound when the note is missing.
	CloseNote(ctx context.Context, noteID uuid.UUID) error
	// SumItems returns Σ quantity × unit_price over the note's items and the number of items.
	SumItems(ctx context.Context, noteID uuid.UUID) (totalCents int64, itemCount int, err error)
	CreateBilling(ctx context.Context, b *Billing) error
}
