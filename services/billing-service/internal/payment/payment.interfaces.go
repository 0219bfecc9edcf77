// services/billing-service/internal/payment/payment.interfaces.go
package payment

import (
	"context"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/google/uuid"
)

// PaymentGateway abstracts the external money mover (Stripe).
// It accepts Context for cancellation or timeouts propagation.
type PaymentGateway interface {
	// CreateIntent opens a payment intent that the payer confirms client-side.
	// It never moves money by itself.
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
}

// Ledger is the slice of ledger.Service the coordinator writes through.
type Ledger interface {
	GetSummary(ctx context.Context, noteID uuid.UUID) (*ledger.Summary, error)
	Append(ctx context.Context, req ledger.AppendRequest) (*ledger.AppendResult, error)
}

// EventEmitter publishes best-effort notifications after commit.
type EventEmitter interface {
	Emit(ctx context.Context, key string, event any)
}
