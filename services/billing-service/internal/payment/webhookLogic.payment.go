//services/billing-service/internal/payment/webhookLogic.payment.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/shared/contracts"
	"github.com/google/uuid"
)

// SettlementOutcome says what ApplySettlement did with an event. All outcomes are acknowledged.
type SettlementOutcome string

const (
	OutcomeApplied   SettlementOutcome = "applied"
	OutcomeDuplicate SettlementOutcome = "duplicate"
	OutcomeIgnored   SettlementOutcome = "ignored"
	// OutcomeOvercollected: the gateway took more than the remaining balance. Only the balance
	// was applied (possibly nothing) and the excess is flagged for a manual refund.
	OutcomeOvercollected SettlementOutcome = "overcollected"
)

// HandleSettlementEvent is the webhook entry point. It returns a domain ErrUnauthorized when the
// signature is bad (the event must not be acknowledged) and nil for everything that should be acked.
func (c *Coordinator) HandleSettlementEvent(ctx context.Context, payload []byte, headers map[string]string) error {
	evt, err := c.webhook.VerifyAndParse(payload, headers)
	switch {
	case errors.Is(err, ErrBadSignature):
		c.logger.WarnContext(ctx, "webhook rejected", slog.String("provider", c.webhook.Provider()), slog.Any("error", err))
		return fmt.Errorf("%w: %v", domainErr.ErrUnauthorized, err)
	case errors.Is(err, ErrMalformedEvent):
		// Signed by the processor but not something we can read; retrying will not help.
		c.logger.WarnContext(ctx, "webhook payload ignored", slog.Any("error", err))
		return nil
	case err != nil:
		return err
	case evt == nil:
		return nil // event type we do not track
	}

	_, err = c.ApplySettlement(ctx, *evt)
	return err
}

// ApplySettlement appends a card payment for a succeeded gateway event. The event id is the
// payment reference, so replays (webhook retries, sweeper passes) are harmless no-ops.
// Only a transient store failure is returned as an error, so the processor redelivers.
func (c *Coordinator) ApplySettlement(ctx context.Context, evt SettlementEvent) (SettlementOutcome, error) {
	log := c.logger.With(
		slog.String("provider", evt.Provider),
		slog.String("event_id", evt.EventID),
		slog.String("payment_intent", evt.ProviderPaymentID))

	// 1. Which billing is this about? Not ours -> acknowledge and forget.
	if evt.AttributesErr != nil || evt.Attributes.BillingID == uuid.Nil {
		log.InfoContext(ctx, "settlement carries no usable billing reference", slog.Any("reason", evt.AttributesErr))
		return OutcomeIgnored, nil
	}
	if evt.EventID == "" || evt.AmountCents <= 0 {
		log.WarnContext(ctx, "settlement without event id or amount", slog.Int64("amount_cents", evt.AmountCents))
		return OutcomeIgnored, nil
	}
	if evt.Currency != "" && evt.Currency != c.currency {
		log.ErrorContext(ctx, "settlement in unexpected currency", slog.String("currency", evt.Currency), slog.Bool("critical", true))
		return OutcomeIgnored, nil
	}

	billingID := evt.Attributes.BillingID
	reference := evt.EventID

	// 2. Append through the shared idempotent primitive.
	res, err := c.ledger.Append(ctx, ledger.AppendRequest{
		BillingID:   billingID,
		AmountCents: evt.AmountCents,
		Method:      billingtypes.MethodCard,
		Reference:   &reference,
		Actor:       evt.Attributes.Actor,
	})
	switch {
	case errors.Is(err, domainErr.ErrNotFound):
		log.InfoContext(ctx, "settlement for unknown billing", slog.String("billing_id", billingID.String()))
		return OutcomeIgnored, nil
	case errors.Is(err, domainErr.ErrInvalidInput):
		log.WarnContext(ctx, "settlement rejected by ledger", slog.Any("error", err))
		return OutcomeIgnored, nil
	case err != nil:
		log.ErrorContext(ctx, "settlement append failed", slog.Any("error", err))
		return "", err
	}

	if res.Duplicate {
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeApplied
	applied := int64(0)
	if res.Payment != nil {
		applied = res.Payment.AmountCents
		c.emitRecorded(ctx, evt.Attributes.NoteID, res)
	}
	if applied < evt.AmountCents {
		outcome = OutcomeOvercollected
		// Money moved at the gateway that the ledger cannot hold. Refunds are manual.
		log.ErrorContext(ctx, "gateway collected more than the remaining balance",
			slog.String("billing_id", billingID.String()),
			slog.Int64("received_cents", evt.AmountCents),
			slog.Int64("applied_cents", applied),
			slog.Bool("critical", true))
		if c.events != nil {
			c.events.Emit(ctx, billingID.String(), contracts.PaymentOvercollected{
				Type:          contracts.EventPaymentOvercollected,
				BillingID:     billingID.String(),
				Reference:     reference,
				ReceivedCents: evt.AmountCents,
				AppliedCents:  applied,
				OccurredAt:    time.Now().UTC(),
			})
		}
	}
	return outcome, nil
}
