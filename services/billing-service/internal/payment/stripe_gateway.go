//services/billing-service/internal/payment/stripe_gateway.go

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
)

const eventPaymentIntentSucceeded = "payment_intent.succeeded"

// maxListedEvents bounds one sweeper pass.
const maxListedEvents = 500

// StripeGateway implements PaymentGateway and SettlementSource for Stripe.
type StripeGateway struct {
	client *client.API //this is the stripe client . it will be initialized with the secret key
}

// NewStripeGateway creates a new StripeGateway with the provided secret key
func NewStripeGateway(apiKey string) *StripeGateway {
	return NewStripeGatewayWithBackends(apiKey, nil)
}

// NewStripeGatewayWithBackends allows pointing the client at a fake API in tests.
func NewStripeGatewayWithBackends(apiKey string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &StripeGateway{client: sc}
}

// CreateIntent opens a PaymentIntent with automatic payment methods. The payer confirms it
// in the browser; we only learn about success through the signed webhook.
func (sg *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if req.AmountCents < billingtypes.MinChargeCents {
		return nil, ErrInvalidAmount
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(req.Description),
	}
	// Metadata carries the attribute bag back to us on the webhook.
	for k, v := range req.Attributes.Metadata() {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	//If the server shuts down or the request times out, this cancels the http request to Stripe.
	params.Context = ctx

	// We use s.client.PaymentIntents, NOT paymentintent.New (which uses global state).
	pi, err := sg.client.PaymentIntents.New(params)
	if err != nil {
		return nil, sg.mapStripeError(err)
	}

	return &IntentResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       mapIntentStatus(pi.Status),
	}, nil
}

// ListSettlements pages through succeeded PaymentIntent events created at or after since.
func (sg *StripeGateway) ListSettlements(ctx context.Context, since time.Time) ([]SettlementEvent, error) {
	params := &stripe.EventListParams{
		Type: stripe.String(eventPaymentIntentSucceeded),
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: since.Unix(),
		},
	}
	params.Limit = stripe.Int64(100)
	params.Context = ctx

	var out []SettlementEvent
	iter := sg.client.Events.List(params)
	for iter.Next() && len(out) < maxListedEvents {
		evt, err := SettlementFromStripeEvent(iter.Event())
		if err != nil || evt == nil {
			continue
		}
		out = append(out, *evt)
	}
	if err := iter.Err(); err != nil {
		return nil, sg.mapStripeError(err)
	}
	return out, nil
}

// SettlementFromStripeEvent normalizes a Stripe event. It returns (nil, nil) for event types other
// than payment_intent.succeeded and ErrMalformedEvent when the object cannot be decoded.
func SettlementFromStripeEvent(event *stripe.Event) (*SettlementEvent, error) {
	if event == nil || string(event.Type) != eventPaymentIntentSucceeded {
		return nil, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data object", ErrMalformedEvent, event.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	// Prefer what actually landed; older payloads only carry the requested amount.
	amount := pi.AmountReceived
	if amount <= 0 {
		amount = pi.Amount
	}

	attrs, attrErr := ParseIntentAttributes(pi.Metadata)
	return &SettlementEvent{
		Provider:          "Stripe",
		EventID:           event.ID,
		ProviderPaymentID: pi.ID,
		AmountCents:       amount,
		Currency:          string(pi.Currency),
		Attributes:        attrs,
		AttributesErr:     attrErr,
		CreatedAt:         time.Unix(event.Created, 0).UTC(),
	}, nil
}

// mapStripeError converts external library errors into Domain Errors.
// This prevents 'stripe-go' imports from leaking into our Business Service layer.
func (sg *StripeGateway) mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeAmountTooSmall, stripe.ErrorCodeAmountTooLarge:
			return fmt.Errorf("%w: %s", ErrInvalidAmount, stripeErr.Msg)
		case stripe.ErrorCodeIdempotencyKeyInUse:
			return fmt.Errorf("system conflict: idempotency key collision: %w", err)
		}

		// Check HTTP status for outages
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrProviderDown, err)
		}
		if stripeErr.HTTPStatusCode >= http.StatusBadRequest && stripeErr.HTTPStatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrPaymentFailed, stripeErr.Msg)
		}
	}
	return fmt.Errorf("gateway internal error: %w", err)
}

func mapIntentStatus(s stripe.PaymentIntentStatus) PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return PaymentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return PaymentFailed
	case stripe.PaymentIntentStatusRequiresAction:
		return StatusRequiresAction
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresCapture:
		return PaymentStatusPending
	default:
		return PaymentStatusUnknown
	}
}
