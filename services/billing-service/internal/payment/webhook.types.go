// services/billing-service/internal/payment/webhook.types.go
package payment

import (
	"context"
	"time"
)

// SettlementEvent is the provider-neutral form of a "payment succeeded" callback.
// It doesn't matter whether it came from the webhook or from the sweeper's event listing.
type SettlementEvent struct {
	Provider          string // e.g., "Stripe"
	EventID           string // gateway event id, used as the payment reference
	ProviderPaymentID string // e.g., "pi_3M..."
	AmountCents       int64  // amount actually received, falling back to the requested amount
	Currency          string
	Attributes        IntentAttributes
	AttributesErr     error // why Attributes could not be read; nil when BillingID is usable
	CreatedAt         time.Time
}

// WebhookProcessor turns raw HTTP bytes into a SettlementEvent.
// It returns ErrBadSignature (wrapped) when the payload cannot be trusted and
// (nil, nil) for event types the ledger does not care about.
type WebhookProcessor interface {
	Provider() string
	VerifyAndParse(payload []byte, headers map[string]string) (*SettlementEvent, error)
}

// SettlementSource lists settlements straight from the gateway, for webhooks that never arrived.
type SettlementSource interface {
	ListSettlements(ctx context.Context, since time.Time) ([]SettlementEvent, error)
}
