// services/billing-service/internal/store/sqlstore/ledger_store.sqlstore.go
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/reports"
	"github.com/google/uuid"
)

// LedgerStore implements ledger.LedgerStore. Payments are insert-only.
type LedgerStore struct {
	db *DB
}

func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const (
	billingColumns = `id, note_id, total_cents, created_at`
	paymentColumns = `id, billing_id, amount_cents, method, reference, created_by, created_by_name, created_at`
)

func (s *LedgerStore) GetBillingByNote(ctx context.Context, noteID uuid.UUID) (*invoice.Billing, error) {
	var b invoice.Billing
	query := `SELECT ` + billingColumns + ` FROM billings WHERE note_id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &b, query, noteID); err != nil {
		return nil, rowErr(err, "billing for note", noteID)
	}
	return &b, nil
}

func (s *LedgerStore) LockBilling(ctx context.Context, billingID uuid.UUID) (*invoice.Billing, error) {
	var b invoice.Billing
	query := `SELECT ` + billingColumns + ` FROM billings WHERE id = $1` + s.db.forUpdate()
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &b, query, billingID); err != nil {
		return nil, rowErr(err, "billing", billingID)
	}
	return &b, nil
}

func (s *LedgerStore) SumPayments(ctx context.Context, billingID uuid.UUID) (int64, error) {
	var paid int64
	query := `SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM payments WHERE billing_id = $1`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &paid, query, billingID); err != nil {
		return 0, classify(fmt.Errorf("db: failed to sum payments: %w", err))
	}
	return paid, nil
}

func (s *LedgerStore) HasReference(ctx context.Context, billingID uuid.UUID, reference string) (bool, error) {
	var n int
	query := `
		SELECT (SELECT COUNT(*) FROM payments WHERE billing_id = $1 AND reference = $2)
		     + (SELECT COUNT(*) FROM settlement_exceptions WHERE billing_id = $3 AND reference = $4)`
	if err := sqlx.GetContext(ctx, s.db.conn(ctx), &n, query, billingID, reference, billingID, reference); err != nil {
		return false, classify(fmt.Errorf("db: failed to check payment reference: %w", err))
	}
	return n > 0, nil
}

func (s *LedgerStore) RecordShortfall(ctx context.Context, billingID uuid.UUID, reference string, unappliedCents int64) (bool, error) {
	query := `
		INSERT INTO settlement_exceptions (billing_id, reference, unapplied_cents, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`
	res, err := s.db.conn(ctx).ExecContext(ctx, query, billingID, reference, unappliedCents, time.Now().UTC())
	if err != nil {
		return false, classify(fmt.Errorf("db: failed to record settlement shortfall: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db: rows affected: %w", err)
	}
	return rows == 1, nil
}

// InsertPayment relies on the partial unique index over (billing_id, reference):
// a second row with the same reference is silently skipped and reported as inserted=false.
func (s *LedgerStore) InsertPayment(ctx context.Context, p *ledger.Payment) (bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING`

	res, err := s.db.conn(ctx).ExecContext(ctx, query,
		p.ID,
		p.BillingID,
		p.AmountCents,
		string(p.Method),
		p.Reference,
		p.CreatedBy,
		p.CreatedByName,
		p.CreatedAt,
	)
	if err != nil {
		return false, classify(fmt.Errorf("db: failed to insert payment: %w", err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db: rows affected: %w", err)
	}
	// This is NOT an error. It means Idempotency worked.
	return rows == 1, nil
}

func (s *LedgerStore) ListPayments(ctx context.Context, billingID uuid.UUID) ([]ledger.Payment, error) {
	payments := []ledger.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE billing_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, s.db.conn(ctx), &payments, query, billingID); err != nil {
		return nil, classify(fmt.Errorf("db: failed to list payments: %w", err))
	}
	return payments, nil
}

// ListPaymentsBetween returns every payment created in [from, to), oldest first.
func (s *LedgerStore) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]ledger.Payment, error) {
	payments := []ledger.Payment{}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, s.db.conn(ctx), &payments, query, from.UTC(), to.UTC()); err != nil {
		return nil, classify(fmt.Errorf("db: failed to list payments for period: %w", err))
	}
	return payments, nil
}

// ListOutstanding returns every billing whose payments sum below its total, oldest first.
func (s *LedgerStore) ListOutstanding(ctx context.Context) ([]reports.Outstanding, error) {
	bills := []reports.Outstanding{}
	query := `
		SELECT b.id AS billing_id, b.note_id, b.total_cents,
		       COALESCE(SUM(p.amount_cents), 0) AS paid_cents, b.created_at
		FROM billings b
		LEFT JOIN payments p ON p.billing_id = b.id
		GROUP BY b.id, b.note_id, b.total_cents, b.created_at
		HAVING COALESCE(SUM(p.amount_cents), 0) < b.total_cents
		ORDER BY b.created_at, b.id`
	if err := sqlx.SelectContext(ctx, s.db.conn(ctx), &bills, query); err != nil {
		return nil, classify(fmt.Errorf("db: failed to list outstanding billings: %w", err))
	}
	return bills, nil
}
