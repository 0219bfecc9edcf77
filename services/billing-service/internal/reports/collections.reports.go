// services/billing-service/internal/reports/collections.reports.go
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
)

// PaymentLister reads payments by creation time.
type PaymentLister interface {
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]ledger.Payment, error)
}

// Collections is the money taken on one UTC day.
type Collections struct {
	Date          time.Time
	TotalCents    int64
	ByMethodCents map[billingtypes.PaymentMethod]int64
	Payments      []ledger.Payment
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With(slog.String("component", "Reports"))}
}

// Collections sums the payments recorded on day (UTC), split by method.
func (s *Service) Collections(ctx context.Context, day time.Time) (*Collections, error) {
	y, m, d := day.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	payments, err := s.store.ListPaymentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for %s: %w", from.Format(time.DateOnly), err)
	}

	out := &Collections{
		Date: from,
		ByMethodCents: map[billingtypes.PaymentMethod]int64{
			billingtypes.MethodCash: 0,
			billingtypes.MethodCard: 0,
		},
		Payments: payments,
	}
	for _, p := range payments {
		out.TotalCents += p.AmountCents
		out.ByMethodCents[p.Method] += p.AmountCents
	}

	s.logger.DebugContext(ctx, "collections report built",
		slog.String("date", from.Format(time.DateOnly)),
		slog.Int("payments", len(payments)),
		slog.Int64("total_cents", out.TotalCents))
	return out, nil
}
