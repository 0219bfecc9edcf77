//services/billing-service/internal/ledger/models.ledger.go

package ledger

import (
	"context"
	"time"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/google/uuid"
)

// Payment is one append-only ledger row. Rows are never updated or deleted.
type Payment struct {
	ID            uuid.UUID                  `db:"id"`
	BillingID     uuid.UUID                  `db:"billing_id"`
	AmountCents   int64                      `db:"amount_cents"`
	Method        billingtypes.PaymentMethod `db:"method"`
	Reference     *string                    `db:"reference"`       // idempotency token, unique per billing when set
	CreatedBy     *string                    `db:"created_by"`      // actor id, nil for unattributed gateway payments
	CreatedByName *string                    `db:"created_by_name"` // display label
	CreatedAt     time.Time                  `db:"created_at"`
}

// Summary is the live view of a bill. Paid is always recomputed from the payment rows.
type Summary struct {
	BillingID    uuid.UUID
	NoteID       uuid.UUID
	TotalCents   int64
	PaidCents    int64
	BalanceCents int64
	Payments     []Payment
}

// AppendRequest asks the ledger to record money against a billing.
// AmountCents is the requested amount; the ledger clamps it to the remaining balance.
type AppendRequest struct {
	BillingID   uuid.UUID
	AmountCents int64
	Method      billingtypes.PaymentMethod
	Reference   *string
	Actor       billingtypes.Actor
}

// AppendResult reports what the append did. Exactly one of Payment, Duplicate, Exhausted is set.
type AppendResult struct {
	Billing      invoice.Billing
	Payment      *Payment
	Duplicate    bool  // reference already recorded for this billing
	Exhausted    bool  // balance was zero, no payment recorded (card references are kept as a shortfall)
	PaidCents    int64 // after the append
	BalanceCents int64 // after the append
}

// LedgerStore is the persistence contract of the ledger.
// Lock and write methods must run on the transaction carried in ctx.
type LedgerStore interface {
	GetBillingByNote(ctx context.Context, noteID uuid.UUID) (*invoice.Billing, error)
	// LockBilling reads the billing and holds its row lock until the transaction ends.
	// All appends for one billing serialize on this lock.
	LockBilling(ctx context.Context, billingID uuid.UUID) (*invoice.Billing, error)
	SumPayments(ctx context.Context, billingID uuid.UUID) (int64, error)
	// HasReference reports whether reference was already recorded for the billing,
	// either as a payment or as a settlement shortfall.
	HasReference(ctx context.Context, billingID uuid.UUID, reference string) (bool, error)
	// InsertPayment is idempotent on (billing_id, reference): a conflicting row returns inserted=false, nil.
	InsertPayment(ctx context.Context, p *Payment) (inserted bool, err error)
	// RecordShortfall keeps a card settlement that found nothing left to pay.
	// Idempotent on (billing_id, reference): an existing row returns recorded=false, nil.
	RecordShortfall(ctx context.Context, billingID uuid.UUID, reference string, unappliedCents int64) (recorded bool, err error)
	ListPayments(ctx context.Context, billingID uuid.UUID) ([]Payment, error)
}

// Summarize derives paid and balance from the payment set. Balance is never negative.
func Summarize(b invoice.Billing, payments []Payment) Summary {
	var paid int64
	for _, p := range payments {
		paid += p.AmountCents
	}
	return Summary{
		BillingID:    b.ID,
		NoteID:       b.NoteID,
		TotalCents:   b.TotalCents,
		PaidCents:    paid,
		BalanceCents: Balance(b.TotalCents, paid),
		Payments:     payments,
	}
}

func Balance(total, paid int64) int64 {
	if paid >= total {
		return 0
	}
	return total - paid
}
