//services/billing-service/internal/worker/sweeper.payment.go

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/payment"
)

/*
A card payment lands in the ledger only when the signed webhook reaches us.
Bad things can happen in between:
Server restarts while Stripe is delivering
Webhook endpoint misconfigured for a while
Stripe gives up retrying
The money is taken but the bill still shows a balance.

The Sweeper asks Stripe for recent succeeded intents and pushes each one through the same
idempotent settlement path the webhook uses. Events the webhook already applied are no-ops
because the event id is the payment reference.
*/

// SettlementApplier is the slice of payment.Coordinator the sweeper drives.
type SettlementApplier interface {
	ApplySettlement(ctx context.Context, evt payment.SettlementEvent) (payment.SettlementOutcome, error)
}

type SweeperConfig struct {
	Interval    time.Duration // how often to sweep
	Lookback    time.Duration // how far back each sweep lists events
	WorkerCount int           // how many goroutines to run in parallel
}

type Sweeper struct {
	source  payment.SettlementSource // gateway event listing
	applier SettlementApplier        // business logic
	cfg     SweeperConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewSweeper(source payment.SettlementSource, applier SettlementApplier, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Lookback <= 0 {
		// Stripe retries webhooks for up to three days; one extra day covers the gap.
		cfg.Lookback = 4 * 24 * time.Hour
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 5
	}
	return &Sweeper{
		source:  source,
		applier: applier,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "Sweeper")),
		now:     time.Now,
	}
}

// Start runs the worker loop until ctx is cancelled. blocking call.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.InfoContext(ctx, "worker started", slog.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "context cancelled, stopping")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// SweepResult counts what one pass did with the listed events.
type SweepResult struct {
	Listed   int
	Outcomes map[payment.SettlementOutcome]int
	Failed   int
}

// Sweep lists recent settlements and applies them through a worker pool.
func (s *Sweeper) Sweep(ctx context.Context) SweepResult {
	res := SweepResult{Outcomes: make(map[payment.SettlementOutcome]int)}

	events, err := s.source.ListSettlements(ctx, s.now().Add(-s.cfg.Lookback))
	if err != nil {
		s.logger.ErrorContext(ctx, "listing settlements failed", slog.Any("error", err))
		return res
	}
	res.Listed = len(events)
	if len(events) == 0 {
		return res
	}

	//  Worker Pool Setup
	jobs := make(chan payment.SettlementEvent, len(events))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < s.cfg.WorkerCount; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for evt := range jobs {
				outcome, err := s.applier.ApplySettlement(ctx, evt)
				mu.Lock()
				if err != nil {
					res.Failed++
				} else {
					res.Outcomes[outcome]++
				}
				mu.Unlock()
				if err != nil {
					s.logger.WarnContext(ctx, "settlement not applied, next sweep retries",
						slog.Int("worker", id),
						slog.String("event_id", evt.EventID),
						slog.Any("error", err))
				}
			}
		}(w)
	}
	for _, evt := range events {
		jobs <- evt
	}
	close(jobs)
	wg.Wait()

	s.logger.InfoContext(ctx, "sweep completed",
		slog.Int("listed", res.Listed),
		slog.Int("applied", res.Outcomes[payment.OutcomeApplied]),
		slog.Int("overcollected", res.Outcomes[payment.OutcomeOvercollected]),
		slog.Int("failed", res.Failed))
	return res
}
