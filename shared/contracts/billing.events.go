package contracts

import "time"

// Event types published by the billing service.
const (
	EventBillingFinalized     = "billing.finalized"
	EventPaymentRecorded      = "payment.recorded"
	EventPaymentOvercollected = "payment.overcollected"
)

// BillingFinalized is emitted once per visit note when its bill is issued.
type BillingFinalized struct {
	Type       string    `json:"type"`
	BillingID  string    `json:"billing_id"`
	NoteID     string    `json:"note_id"`
	TotalCents int64     `json:"total_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentRecorded is emitted after a payment row commits.
type PaymentRecorded struct {
	Type         string    `json:"type"`
	BillingID    string    `json:"billing_id"`
	NoteID       string    `json:"note_id"`
	PaymentID    string    `json:"payment_id"`
	Method       string    `json:"method"`
	AmountCents  int64     `json:"amount_cents"`
	PaidCents    int64     `json:"paid_cents"`
	BalanceCents int64     `json:"balance_cents"`
	Reference    *string   `json:"reference,omitempty"`
	ActorID      *string   `json:"actor_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// PaymentOvercollected flags gateway money that could not be applied because the bill was already covered.
// Someone has to refund it by hand.
type PaymentOvercollected struct {
	Type          string    `json:"type"`
	BillingID     string    `json:"billing_id"`
	Reference     string    `json:"reference"`
	ReceivedCents int64     `json:"received_cents"`
	AppliedCents  int64     `json:"applied_cents"`
	OccurredAt    time.Time `json:"occurred_at"`
}
