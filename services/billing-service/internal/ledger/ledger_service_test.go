package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/google/uuid"
)

// --- MOCKS ---

// MockLedgerStore keeps billings and payments in memory.
// The unique (billing_id, reference) index is simulated in InsertPayment.
type MockLedgerStore struct {
	mu         sync.Mutex
	Billings   map[uuid.UUID]*invoice.Billing
	Payments   []Payment
	Shortfalls map[string]int64 // billing_id/reference -> unapplied cents
}

func NewMockLedgerStore(billings ...*invoice.Billing) *MockLedgerStore {
	m := &MockLedgerStore{Billings: map[uuid.UUID]*invoice.Billing{}, Shortfalls: map[string]int64{}}
	for _, b := range billings {
		m.Billings[b.ID] = b
	}
	return m
}

func (m *MockLedgerStore) GetBillingByNote(ctx context.Context, noteID uuid.UUID) (*invoice.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.Billings {
		if b.NoteID == noteID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domainErr.ErrNotFound
}

func (m *MockLedgerStore) LockBilling(ctx context.Context, id uuid.UUID) (*invoice.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.Billings[id]
	if !ok {
		return nil, domainErr.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockLedgerStore) SumPayments(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, p := range m.Payments {
		if p.BillingID == id {
			sum += p.AmountCents
		}
	}
	return sum, nil
}

func (m *MockLedgerStore) HasReference(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.BillingID == id && p.Reference != nil && *p.Reference == ref {
			return true, nil
		}
	}
	_, ok := m.Shortfalls[id.String()+"/"+ref]
	return ok, nil
}

func (m *MockLedgerStore) RecordShortfall(ctx context.Context, id uuid.UUID, ref string, unapplied int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.String() + "/" + ref
	if _, ok := m.Shortfalls[key]; ok {
		return false, nil
	}
	m.Shortfalls[key] = unapplied
	return true, nil
}

func (m *MockLedgerStore) InsertPayment(ctx context.Context, p *Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Reference != nil {
		for _, existing := range m.Payments {
			if existing.BillingID == p.BillingID && existing.Reference != nil && *existing.Reference == *p.Reference {
				return false, nil
			}
		}
	}
	m.Payments = append(m.Payments, *p)
	return true, nil
}

func (m *MockLedgerStore) ListPayments(ctx context.Context, id uuid.UUID) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Payment
	for _, p := range m.Payments {
		if p.BillingID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

// MockTx serializes transactions, standing in for the billing row lock.
type MockTx struct{ mu sync.Mutex }

func (m *MockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

func strPtr(s string) *string { return &s }

func newBilling(total int64) *invoice.Billing {
	return &invoice.Billing{ID: uuid.New(), NoteID: uuid.New(), TotalCents: total}
}

// --- TESTS ---

func TestAppend(t *testing.T) {
	tests := []struct {
		name          string
		total         int64
		existing      []Payment
		req           func(b *invoice.Billing) AppendRequest
		expectedError error
		wantAmount    int64
		wantDuplicate bool
		wantExhausted bool
		wantPaid      int64
	}{
		{
			name:  "Happy Path: partial cash",
			total: 5550,
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 3000, Method: billingtypes.MethodCash}
			},
			wantAmount: 3000,
			wantPaid:   3000,
		},
		{
			name:  "Clamp: overpayment is reduced to balance",
			total: 5550,
			existing: []Payment{
				{AmountCents: 3000, Method: billingtypes.MethodCash},
			},
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 10000, Method: billingtypes.MethodCash}
			},
			wantAmount: 2550,
			wantPaid:   5550,
		},
		{
			name:  "Exhausted: settled bill records nothing",
			total: 1000,
			existing: []Payment{
				{AmountCents: 1000, Method: billingtypes.MethodCash},
			},
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 500, Method: billingtypes.MethodCard, Reference: strPtr("evt_2")}
			},
			wantExhausted: true,
			wantPaid:      1000,
		},
		{
			name:  "Idempotency: duplicate reference is a no-op",
			total: 5550,
			existing: []Payment{
				{AmountCents: 2550, Method: billingtypes.MethodCard, Reference: strPtr("evt_1")},
			},
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 2550, Method: billingtypes.MethodCard, Reference: strPtr("evt_1")}
			},
			wantDuplicate: true,
			wantPaid:      2550,
		},
		{
			name:  "Invalid Input: non-positive amount",
			total: 5550,
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 0, Method: billingtypes.MethodCash}
			},
			expectedError: domainErr.ErrInvalidInput,
		},
		{
			name:  "Invalid Input: unknown method",
			total: 5550,
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: b.ID, AmountCents: 100, Method: "cheque"}
			},
			expectedError: domainErr.ErrInvalidInput,
		},
		{
			name:  "Not Found: unknown billing",
			total: 5550,
			req: func(b *invoice.Billing) AppendRequest {
				return AppendRequest{BillingID: uuid.New(), AmountCents: 100, Method: billingtypes.MethodCash}
			},
			expectedError: domainErr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBilling(tt.total)
			store := NewMockLedgerStore(b)
			for _, p := range tt.existing {
				p.ID = uuid.New()
				p.BillingID = b.ID
				store.Payments = append(store.Payments, p)
			}
			svc := NewService(store, &MockTx{}, nil)

			res, err := svc.Append(context.Background(), tt.req(b))

			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Fatalf("expected %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Duplicate != tt.wantDuplicate || res.Exhausted != tt.wantExhausted {
				t.Fatalf("duplicate=%v exhausted=%v, want %v/%v", res.Duplicate, res.Exhausted, tt.wantDuplicate, tt.wantExhausted)
			}
			if tt.wantAmount > 0 {
				if res.Payment == nil || res.Payment.AmountCents != tt.wantAmount {
					t.Fatalf("expected payment of %d, got %+v", tt.wantAmount, res.Payment)
				}
			} else if res.Payment != nil {
				t.Fatalf("expected no payment, got %+v", res.Payment)
			}
			if res.PaidCents != tt.wantPaid || res.BalanceCents != tt.total-tt.wantPaid {
				t.Errorf("paid=%d balance=%d, want paid=%d balance=%d", res.PaidCents, res.BalanceCents, tt.wantPaid, tt.total-tt.wantPaid)
			}
		})
	}
}

func TestAppendExhaustedCardSettlementIsKept(t *testing.T) {
	b := newBilling(1000)
	store := NewMockLedgerStore(b)
	store.Payments = []Payment{{ID: uuid.New(), BillingID: b.ID, AmountCents: 1000, Method: billingtypes.MethodCash}}
	svc := NewService(store, &MockTx{}, nil)
	late := AppendRequest{BillingID: b.ID, AmountCents: 5000, Method: billingtypes.MethodCard, Reference: strPtr("evt_late")}

	first, err := svc.Append(context.Background(), late)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Exhausted || first.Duplicate || first.Payment != nil {
		t.Fatalf("first delivery: %+v", first)
	}
	if got := store.Shortfalls[b.ID.String()+"/evt_late"]; got != 5000 {
		t.Errorf("shortfall = %d, want 5000", got)
	}

	for i := 0; i < 2; i++ {
		replay, err := svc.Append(context.Background(), late)
		if err != nil {
			t.Fatal(err)
		}
		if !replay.Duplicate || replay.Exhausted {
			t.Errorf("replay %d should be a duplicate: %+v", i, replay)
		}
	}

	// Cash on a settled bill keeps no record; the caller is told there is no balance.
	cash, err := svc.Append(context.Background(), AppendRequest{BillingID: b.ID, AmountCents: 100, Method: billingtypes.MethodCash, Reference: strPtr("receipt-1")})
	if err != nil {
		t.Fatal(err)
	}
	if !cash.Exhausted || len(store.Shortfalls) != 1 {
		t.Errorf("cash should not be kept as a shortfall: %+v, %v", cash, store.Shortfalls)
	}
}

func TestAppendAttributesActorAndTrimsReference(t *testing.T) {
	b := newBilling(1000)
	store := NewMockLedgerStore(b)
	svc := NewService(store, &MockTx{}, nil)

	res, err := svc.Append(context.Background(), AppendRequest{
		BillingID:   b.ID,
		AmountCents: 400,
		Method:      billingtypes.MethodCash,
		Reference:   strPtr("  receipt-17 "),
		Actor:       billingtypes.Actor{ID: "u-9", Name: "front@clinic.test", Role: "receptionist"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := res.Payment
	if p.Reference == nil || *p.Reference != "receipt-17" {
		t.Errorf("reference not trimmed: %v", p.Reference)
	}
	if p.CreatedBy == nil || *p.CreatedBy != "u-9" || p.CreatedByName == nil || *p.CreatedByName != "front@clinic.test" {
		t.Errorf("actor not recorded: %+v", p)
	}

	blank, err := svc.Append(context.Background(), AppendRequest{BillingID: b.ID, AmountCents: 100, Method: billingtypes.MethodCash, Reference: strPtr("   ")})
	if err != nil {
		t.Fatal(err)
	}
	if blank.Payment.Reference != nil || blank.Payment.CreatedBy != nil {
		t.Errorf("blank reference and missing actor should be nil: %+v", blank.Payment)
	}
}

// Concurrent cash and card appends against one billing never push paid above total.
func TestConcurrentAppendsNeverOverpay(t *testing.T) {
	b := newBilling(5550)
	store := NewMockLedgerStore(b)
	svc := NewService(store, &MockTx{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := AppendRequest{BillingID: b.ID, AmountCents: 700, Method: billingtypes.MethodCash}
			if i%2 == 0 {
				req.Method = billingtypes.MethodCard
				req.Reference = strPtr("evt_" + string(rune('a'+i%5)))
			}
			if _, err := svc.Append(context.Background(), req); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	sum, err := svc.GetSummary(context.Background(), b.NoteID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.PaidCents != 5550 || sum.BalanceCents != 0 {
		t.Fatalf("expected fully paid without overpay, got paid=%d balance=%d", sum.PaidCents, sum.BalanceCents)
	}
	for _, p := range sum.Payments {
		if p.AmountCents <= 0 {
			t.Errorf("non-positive payment row %+v", p)
		}
	}
}

func TestGetSummary(t *testing.T) {
	b := newBilling(5550)
	store := NewMockLedgerStore(b)
	store.Payments = []Payment{
		{ID: uuid.New(), BillingID: b.ID, AmountCents: 3000, Method: billingtypes.MethodCash},
		{ID: uuid.New(), BillingID: b.ID, AmountCents: 2550, Method: billingtypes.MethodCard},
	}
	svc := NewService(store, &MockTx{}, nil)

	sum, err := svc.GetSummary(context.Background(), b.NoteID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalCents != 5550 || sum.PaidCents != 5550 || sum.BalanceCents != 0 || len(sum.Payments) != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}

	if _, err := svc.GetSummary(context.Background(), uuid.New()); !errors.Is(err, domainErr.ErrNotFound) {
		t.Errorf("expected NotFound for unfinalized note, got %v", err)
	}
}

func TestBalanceNeverNegative(t *testing.T) {
	if got := Balance(1000, 1500); got != 0 {
		t.Errorf("Balance(1000, 1500) = %d, want 0", got)
	}
	if got := Balance(5550, 3000); got != 2550 {
		t.Errorf("Balance(5550, 3000) = %d, want 2550", got)
	}
}

func TestResolveAmount(t *testing.T) {
	tests := []struct {
		name      string
		requested int64
		balance   int64
		want      int64
		wantErr   error
	}{
		{"Clamp to balance", 10000, 2550, 2550, nil},
		{"Partial amount kept", 1000, 2550, 1000, nil},
		{"No balance remaining", 1000, 0, 0, domainErr.ErrNoBalance},
		{"Non-positive request", 0, 2550, 0, domainErr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAmount(tt.requested, tt.balance)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}
