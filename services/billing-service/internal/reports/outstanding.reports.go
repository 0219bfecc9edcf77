// services/billing-service/internal/reports/outstanding.reports.go
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OutstandingLister reads finalized bills that still have money owing.
type OutstandingLister interface {
	ListOutstanding(ctx context.Context) ([]Outstanding, error)
}

// Store is everything the report service reads.
type Store interface {
	PaymentLister
	OutstandingLister
}

// Outstanding is one unpaid or partly paid bill.
type Outstanding struct {
	BillingID    uuid.UUID `db:"billing_id"`
	NoteID       uuid.UUID `db:"note_id"`
	TotalCents   int64     `db:"total_cents"`
	PaidCents    int64     `db:"paid_cents"`
	BalanceCents int64     `db:"-"`
	CreatedAt    time.Time `db:"created_at"`
}

// Receivables is the list of open balances, oldest bill first.
type Receivables struct {
	Bills        []Outstanding
	BalanceCents int64
}

// Outstanding lists every finalized bill whose payments do not yet cover its total.
func (s *Service) Outstanding(ctx context.Context) (*Receivables, error) {
	bills, err := s.store.ListOutstanding(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding bills: %w", err)
	}

	out := &Receivables{Bills: make([]Outstanding, 0, len(bills))}
	for _, b := range bills {
		b.BalanceCents = b.TotalCents - b.PaidCents
		if b.BalanceCents <= 0 {
			continue
		}
		out.BalanceCents += b.BalanceCents
		out.Bills = append(out.Bills, b)
	}

	s.logger.DebugContext(ctx, "outstanding report built",
		slog.Int("bills", len(out.Bills)),
		slog.Int64("balance_cents", out.BalanceCents))
	return out, nil
}
