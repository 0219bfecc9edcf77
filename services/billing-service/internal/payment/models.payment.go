// services/billing-service/internal/payment/models.payment.go
package payment

import (
	"errors"

	"github.com/google/uuid"
)

// Standard Payment Errors
var (
	ErrPaymentFailed    = errors.New("payment gateway rejected the request")
	ErrInvalidAmount    = errors.New("invalid payment amount")
	ErrProviderDown     = errors.New("payment provider is currently unavailable") //e.g stripe API down
	ErrNoClientSecret   = errors.New("payment gateway returned no client secret")
	ErrIntentNotPayable = errors.New("payment gateway returned an intent that cannot be paid")
	ErrBadSignature     = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("webhook event payload is malformed")
	ErrMissingBilling   = errors.New("intent attributes carry no billing id")
	ErrInvalidBillingID = errors.New("intent attributes carry an unparsable billing id")
)

// IntentRequest is everything the gateway needs to open a payment intent.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	Description    string // appears on the processor dashboard and statements
	Attributes     IntentAttributes
	IdempotencyKey string // optional
}

// IntentResult is what the payer-facing client needs to confirm the card payment.
type IntentResult struct {
	IntentID     string
	ClientSecret string
	Status       PaymentStatus
}

// Intent is returned by Coordinator.CreateIntent.
type Intent struct {
	IntentID     string
	ClientSecret string
	BillingID    uuid.UUID
	AmountCents  int64
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentSucceeded     PaymentStatus = "SUCCEEDED"
	PaymentFailed        PaymentStatus = "FAILED"
	StatusRequiresAction PaymentStatus = "REQUIRES_ACTION"
	PaymentStatusUnknown PaymentStatus = "UNKNOWN"
)

// Awaiting reports whether the payer can still confirm the intent.
func (s PaymentStatus) Awaiting() bool {
	return s == PaymentStatusPending || s == StatusRequiresAction
}
