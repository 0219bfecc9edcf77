//services/billing-service/internal/ledger/ledger_service.go

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/store"
	"github.com/google/uuid"
)

// Service is the authoritative total/paid/balance record of finalized notes.
type Service struct {
	store  LedgerStore
	tx     store.TransactionManager
	logger *slog.Logger
	now    func() time.Time
}

func NewService(ls LedgerStore, tx store.TransactionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  ls,
		tx:     tx,
		logger: logger.With(slog.String("component", "Ledger")),
		now:    time.Now,
	}
}

// GetSummary returns the bill of a note with paid/balance computed from its payments.
func (s *Service) GetSummary(ctx context.Context, noteID uuid.UUID) (*Summary, error) {
	b, err := s.store.GetBillingByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	sum := Summarize(*b, payments)
	return &sum, nil
}

// Append records a payment as one atomic unit: lock billing, detect duplicate reference,
// sum payments, clamp to balance, insert. Two concurrent appends can never push paid above total.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*AppendResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", domainErr.ErrInvalidInput)
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", domainErr.ErrInvalidInput, req.Method)
	}
	req.Reference = normalizeReference(req.Reference)

	var res *AppendResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res = nil

		b, err := s.store.LockBilling(ctx, req.BillingID)
		if err != nil {
			return err
		}
		r := &AppendResult{Billing: *b}

		paid, err := s.store.SumPayments(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		r.PaidCents = paid
		r.BalanceCents = Balance(b.TotalCents, paid)

		// Under the billing lock this lookup cannot race another append; the unique
		// index below still backs it up.
		if req.Reference != nil {
			dup, err := s.store.HasReference(ctx, b.ID, *req.Reference)
			if err != nil {
				return fmt.Errorf("failed to check reference: %w", err)
			}
			if dup {
				r.Duplicate = true
				res = r
				return nil
			}
		}

		amount := min(req.AmountCents, r.BalanceCents)
		if amount <= 0 {
			r.Exhausted = true
			// The gateway already took this money. Remember the event so a replay is a duplicate.
			if req.Reference != nil && req.Method == billingtypes.MethodCard {
				recorded, err := s.store.RecordShortfall(ctx, b.ID, *req.Reference, req.AmountCents)
				if err != nil {
					return fmt.Errorf("failed to record shortfall: %w", err)
				}
				if !recorded {
					r.Exhausted, r.Duplicate = false, true
				}
			}
			res = r
			return nil
		}

		p := &Payment{
			ID:          uuid.New(),
			BillingID:   b.ID,
			AmountCents: amount,
			Method:      req.Method,
			Reference:   req.Reference,
			CreatedAt:   s.now().UTC(),
		}
		if req.Actor.ID != "" {
			id := req.Actor.ID
			p.CreatedBy = &id
		}
		if req.Actor.Name != "" {
			name := req.Actor.Name
			p.CreatedByName = &name
		}

		inserted, err := s.store.InsertPayment(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		if !inserted {
			r.Duplicate = true
			res = r
			return nil
		}

		r.Payment = p
		r.PaidCents = paid + amount
		r.BalanceCents = Balance(b.TotalCents, r.PaidCents)
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{
		slog.String("billing_id", req.BillingID.String()),
		slog.String("method", string(req.Method)),
		slog.Int64("requested_cents", req.AmountCents),
		slog.Int64("paid_cents", res.PaidCents),
		slog.Int64("balance_cents", res.BalanceCents),
	}
	switch {
	case res.Duplicate:
		s.logger.InfoContext(ctx, "duplicate payment reference, append skipped", attrs...)
	case res.Exhausted:
		s.logger.InfoContext(ctx, "billing already settled, append skipped", attrs...)
	default:
		s.logger.InfoContext(ctx, "payment appended", append(attrs, slog.Int64("amount_cents", res.Payment.AmountCents))...)
	}
	return res, nil
}

// normalizeReference trims the token; blank becomes nil.
func normalizeReference(ref *string) *string {
	if ref == nil {
		return nil
	}
	t := strings.TrimSpace(*ref)
	if t == "" {
		return nil
	}
	return &t
}

// ResolveAmount is the shared amount rule of both intake paths:
// clamp the request to the current balance and reject anything that ends up non-positive.
func ResolveAmount(requestedCents, balanceCents int64) (int64, error) {
	if balanceCents <= 0 {
		return 0, domainErr.ErrNoBalance
	}
	if requestedCents <= 0 {
		return 0, fmt.Errorf("%w: amount must be greater than 0", domainErr.ErrInvalidInput)
	}
	return min(requestedCents, balanceCents), nil
}
