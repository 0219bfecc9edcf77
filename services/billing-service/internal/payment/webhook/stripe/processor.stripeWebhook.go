// services/billing-service/internal/payment/webhook/stripe/processor.stripeWebhook.go
package stripe

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	// Import the core domain
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/payment"
)

// SignatureHeader is where Stripe puts the t=...,v1=... signature.
const SignatureHeader = "Stripe-Signature"

type Processor struct {
	secret string
}

func New(secret string) *Processor {
	return &Processor{secret: secret}
}

func (p *Processor) Provider() string {
	return "Stripe"
}

// VerifyAndParse checks the signature over the raw body and normalizes succeeded intents.
// Other event types come back as (nil, nil).
func (p *Processor) VerifyAndParse(payload []byte, headers map[string]string) (*payment.SettlementEvent, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("%w: no webhook secret configured", payment.ErrBadSignature)
	}

	// 1. Verify Signature (Security). Only the HMAC and timestamp tolerance are checked here;
	// the account API version may be newer than the library's.
	if err := webhook.ValidatePayload(payload, headers[SignatureHeader], p.secret); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrBadSignature, err)
	}

	// 2. Parse JSON. A signed body we cannot read is acknowledged, not retried.
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
	}

	// 3. Map to Domain Event
	return payment.SettlementFromStripeEvent(&event)
}
