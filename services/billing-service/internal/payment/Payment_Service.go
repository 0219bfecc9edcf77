// services/billing-service/internal/payment/Payment_Service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/shared/contracts"
	"github.com/google/uuid"
)

// Coordinator is the only writer of payments. Cash recording, the card webhook and the
// settlement sweeper all funnel into the same idempotent ledger append.
type Coordinator struct {
	ledger   Ledger
	gateway  PaymentGateway
	webhook  WebhookProcessor
	events   EventEmitter
	logger   *slog.Logger
	currency string

	gatewayTimeout time.Duration
	now            func() time.Time

	// sf collapses concurrent identical intent requests (double-clicked "Pay" buttons)
	// into one gateway call; the callers all receive the same client secret.
	sf singleflight.Group
}

type CoordinatorConfig struct {
	Currency       string
	GatewayTimeout time.Duration
}

func NewCoordinator(
	l Ledger,
	gateway PaymentGateway,
	webhook WebhookProcessor,
	events EventEmitter,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = billingtypes.DefaultCurrency
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 30 * time.Second
	}
	return &Coordinator{
		ledger:         l,
		gateway:        gateway,
		webhook:        webhook,
		events:         events,
		logger:         logger.With(slog.String("component", "Coordinator")),
		currency:       cfg.Currency,
		gatewayTimeout: cfg.GatewayTimeout,
		now:            time.Now,
	}
}

// intentKeyWindow bounds how long a retried intent request maps onto the same gateway intent.
const intentKeyWindow = 10 * time.Minute

// RecordCash records money received at the desk. An amount above the balance is
// clamped to the balance; only a non-positive result is rejected.
func (c *Coordinator) RecordCash(ctx context.Context, actor billingtypes.Actor, noteID uuid.UUID, amount decimal.Decimal, reference *string) (*ledger.Summary, error) {
	// 1. Resolve the billing.
	sum, err := c.ledger.GetSummary(ctx, noteID)
	if err != nil {
		return nil, err
	}

	// 2. Amount rules. The authoritative clamp happens again inside the append transaction.
	cents, err := billingtypes.ToMinorUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErr.ErrInvalidInput, err)
	}
	if _, err := ledger.ResolveAmount(cents, sum.BalanceCents); err != nil {
		return nil, err
	}

	// 3. Append.
	res, err := c.ledger.Append(ctx, ledger.AppendRequest{
		BillingID:   sum.BillingID,
		AmountCents: cents,
		Method:      billingtypes.MethodCash,
		Reference:   reference,
		Actor:       actor,
	})
	if err != nil {
		return nil, err
	}
	if res.Exhausted {
		// A concurrent payment settled the bill between our read and the append.
		return nil, domainErr.ErrNoBalance
	}
	if res.Payment != nil {
		c.emitRecorded(ctx, sum.NoteID, res)
	}

	// 4. Refreshed summary.
	return c.ledger.GetSummary(ctx, noteID)
}

// CreateIntent opens a card payment for part or all of the balance. Nothing is appended to the
// ledger here; money only lands through a verified settlement. amount nil means the full balance.
func (c *Coordinator) CreateIntent(ctx context.Context, actor billingtypes.Actor, noteID uuid.UUID, amount *decimal.Decimal) (*Intent, error) {
	sum, err := c.ledger.GetSummary(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if sum.BalanceCents <= 0 {
		return nil, domainErr.ErrNoBalance
	}

	requested := sum.BalanceCents
	if amount != nil {
		if requested, err = billingtypes.ToMinorUnits(amount.Abs()); err != nil {
			return nil, fmt.Errorf("%w: %v", domainErr.ErrInvalidInput, err)
		}
	}
	cents, err := ledger.ResolveAmount(requested, sum.BalanceCents)
	if err != nil {
		return nil, err
	}
	// STRIPE RULE: the smallest chargeable amount is 50 cents. Checked before any network call.
	if cents < billingtypes.MinChargeCents {
		return nil, fmt.Errorf("%w: minimum card charge is %s", domainErr.ErrInvalidInput,
			billingtypes.FromMinorUnits(billingtypes.MinChargeCents).StringFixed(2))
	}

	req := IntentRequest{
		AmountCents: cents,
		Currency:    c.currency,
		Description: fmt.Sprintf("VisitNote %s payment (Billing %s)", sum.NoteID, sum.BillingID),
		Attributes: IntentAttributes{
			BillingID: sum.BillingID,
			NoteID:    sum.NoteID,
			Actor:     actor,
		},
	}

	key := fmt.Sprintf("intent_%s_%d_%d_%s", sum.BillingID, cents, sum.PaidCents, actor.ID)
	// The processor deduplicates retries that slip past singleflight (a second instance,
	// a timed-out request replayed by the client).
	req.IdempotencyKey = fmt.Sprintf("%s_%d", key, c.now().Truncate(intentKeyWindow).Unix())
	v, err, shared := c.sf.Do(key, func() (interface{}, error) {
		// Hard limit for the gateway so a slow processor never hangs the request.
		gwCtx, cancel := context.WithTimeout(ctx, c.gatewayTimeout)
		defer cancel()
		return c.gateway.CreateIntent(gwCtx, req)
	})
	if err != nil {
		return nil, c.gatewayError(err)
	}
	result := v.(*IntentResult)
	if strings.TrimSpace(result.ClientSecret) == "" {
		return nil, domainErr.External("create payment intent", ErrNoClientSecret, false)
	}
	if !result.Status.Awaiting() {
		c.logger.WarnContext(ctx, "payment intent is not awaiting payment",
			slog.String("intent_id", result.IntentID),
			slog.String("status", string(result.Status)))
		return nil, domainErr.External("create payment intent", fmt.Errorf("%w: %s", ErrIntentNotPayable, result.Status), false)
	}

	c.logger.InfoContext(ctx, "payment intent created",
		slog.String("billing_id", sum.BillingID.String()),
		slog.String("intent_id", result.IntentID),
		slog.Int64("amount_cents", cents),
		slog.String("actor_id", actor.ID),
		slog.Bool("shared", shared))

	return &Intent{
		IntentID:     result.IntentID,
		ClientSecret: result.ClientSecret,
		BillingID:    sum.BillingID,
		AmountCents:  cents,
	}, nil
}

// gatewayError translates a gateway failure into the domain taxonomy.
func (c *Coordinator) gatewayError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, ErrInvalidAmount):
		return fmt.Errorf("%w: %v", domainErr.ErrInvalidInput, err)
	}
	return domainErr.External("create payment intent", err, IsRetryAbleError(err))
}

func (c *Coordinator) emitRecorded(ctx context.Context, noteID uuid.UUID, res *ledger.AppendResult) {
	if c.events == nil {
		return
	}
	p := res.Payment
	c.events.Emit(ctx, p.BillingID.String(), contracts.PaymentRecorded{
		Type:         contracts.EventPaymentRecorded,
		BillingID:    p.BillingID.String(),
		NoteID:       noteID.String(),
		PaymentID:    p.ID.String(),
		Method:       string(p.Method),
		AmountCents:  p.AmountCents,
		PaidCents:    res.PaidCents,
		BalanceCents: res.BalanceCents,
		Reference:    p.Reference,
		ActorID:      p.CreatedBy,
		OccurredAt:   p.CreatedAt,
	})
}
