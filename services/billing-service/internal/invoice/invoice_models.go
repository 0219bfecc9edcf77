// services/billing-service/internal/invoice/invoice_models.go

package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Billing is the immutable bill created when a visit note is finalized.
// TotalCents never changes afterwards; paid and balance are derived from payments.
type Billing struct {
	ID         uuid.UUID `db:"id"`
	NoteID     uuid.UUID `db:"note_id"`
	TotalCents int64     `db:"total_cents"`
	CreatedAt  time.Time `db:"created_at"`
}
