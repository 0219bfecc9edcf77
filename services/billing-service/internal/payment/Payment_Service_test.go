package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billingtypes "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/billingTypes"
	domainErr "github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/domain/errors"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/ClinicLedger/services/billing-service/internal/ledger"
	"github.com/Tanmoy095/ClinicLedger/shared/contracts"
)

// --- Mocks ---

// MockTx serializes transactions the way a row lock would.
type MockTx struct{ mu sync.Mutex }

func (m *MockTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// MockLedgerStore keeps billings and payments in memory and enforces (billing_id, reference) uniqueness.
type MockLedgerStore struct {
	mu         sync.Mutex
	billings   map[uuid.UUID]invoice.Billing
	payments   []ledger.Payment
	shortfalls map[string]bool
	failWith   error
}

func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{billings: make(map[uuid.UUID]invoice.Billing), shortfalls: make(map[string]bool)}
}

func (m *MockLedgerStore) addBilling(totalCents int64) invoice.Billing {
	b := invoice.Billing{ID: uuid.New(), NoteID: uuid.New(), TotalCents: totalCents, CreatedAt: time.Now()}
	m.billings[b.ID] = b
	return b
}

func (m *MockLedgerStore) GetBillingByNote(ctx context.Context, noteID uuid.UUID) (*invoice.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.billings {
		if b.NoteID == noteID {
			return &b, nil
		}
	}
	return nil, domainErr.ErrNotFound
}

func (m *MockLedgerStore) LockBilling(ctx context.Context, billingID uuid.UUID) (*invoice.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	b, ok := m.billings[billingID]
	if !ok {
		return nil, domainErr.ErrNotFound
	}
	return &b, nil
}

func (m *MockLedgerStore) SumPayments(ctx context.Context, billingID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, p := range m.payments {
		if p.BillingID == billingID {
			sum += p.AmountCents
		}
	}
	return sum, nil
}

func (m *MockLedgerStore) HasReference(ctx context.Context, billingID uuid.UUID, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BillingID == billingID && p.Reference != nil && *p.Reference == reference {
			return true, nil
		}
	}
	return m.shortfalls[billingID.String()+"/"+reference], nil
}

func (m *MockLedgerStore) RecordShortfall(ctx context.Context, billingID uuid.UUID, reference string, unappliedCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := billingID.String() + "/" + reference
	if m.shortfalls[key] {
		return false, nil
	}
	m.shortfalls[key] = true
	return true, nil
}

func (m *MockLedgerStore) InsertPayment(ctx context.Context, p *ledger.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.BillingID == p.BillingID && existing.Reference != nil && p.Reference != nil && *existing.Reference == *p.Reference {
			return false, nil
		}
	}
	m.payments = append(m.payments, *p)
	return true, nil
}

func (m *MockLedgerStore) ListPayments(ctx context.Context, billingID uuid.UUID) ([]ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Payment
	for _, p := range m.payments {
		if p.BillingID == billingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockLedgerStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

type MockGateway struct {
	calls  atomic.Int32
	last   IntentRequest
	mu     sync.Mutex
	delay  time.Duration
	result *IntentResult
	err    error
}

func (m *MockGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &IntentResult{IntentID: "pi_test", ClientSecret: "pi_test_secret", Status: PaymentStatusPending}, nil
}

type MockWebhook struct {
	evt *SettlementEvent
	err error
}

func (m *MockWebhook) Provider() string { return "Mock" }
func (m *MockWebhook) VerifyAndParse(payload []byte, headers map[string]string) (*SettlementEvent, error) {
	return m.evt, m.err
}

type MockEvents struct {
	mu     sync.Mutex
	events []any
}

func (m *MockEvents) Emit(ctx context.Context, key string, event any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

type fixture struct {
	store   *MockLedgerStore
	gateway *MockGateway
	webhook *MockWebhook
	events  *MockEvents
	coord   *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		store:   NewMockLedgerStore(),
		gateway: &MockGateway{},
		webhook: &MockWebhook{},
		events:  &MockEvents{},
	}
	svc := ledger.NewService(f.store, &MockTx{}, nil)
	f.coord = NewCoordinator(svc, f.gateway, f.webhook, f.events, CoordinatorConfig{GatewayTimeout: time.Second}, nil)
	return f
}

func settlement(b invoice.Billing, eventID string, cents int64) SettlementEvent {
	return SettlementEvent{
		Provider:          "Stripe",
		EventID:           eventID,
		ProviderPaymentID: "pi_" + eventID,
		AmountCents:       cents,
		Currency:          "usd",
		Attributes:        IntentAttributes{BillingID: b.ID, NoteID: b.NoteID},
	}
}

var desk = billingtypes.Actor{ID: "7", Name: "Front Desk", Role: billingtypes.RoleReceptionist}

// --- Tests ---

func TestCashThenCardSettlesBill(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)
	ctx := context.Background()

	sum, err := f.coord.RecordCash(ctx, desk, b.NoteID, decimal.RequireFromString("30.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sum.PaidCents)
	assert.Equal(t, int64(2550), sum.BalanceCents)

	outcome, err := f.coord.ApplySettlement(ctx, settlement(b, "evt_1", 2550))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	sum, err = f.coord.ledger.GetSummary(ctx, b.NoteID)
	require.NoError(t, err)
	assert.Equal(t, int64(5550), sum.PaidCents)
	assert.Equal(t, int64(0), sum.BalanceCents)
	require.Len(t, sum.Payments, 2)
	assert.Equal(t, billingtypes.MethodCard, sum.Payments[1].Method)
	assert.Equal(t, "evt_1", *sum.Payments[1].Reference)
}

func TestRecordCash_ClampsOverpayment(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	sum, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("100"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5550), sum.PaidCents)
	assert.Equal(t, int64(0), sum.BalanceCents)

	_, err = f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("1"), nil)
	assert.ErrorIs(t, err, domainErr.ErrNoBalance)
	assert.Equal(t, 1, f.store.count())
}

func TestRecordCash_Rejections(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(1000)

	tests := []struct {
		name    string
		noteID  uuid.UUID
		amount  string
		wantErr error
	}{
		{"zero", b.NoteID, "0", domainErr.ErrInvalidInput},
		{"negative", b.NoteID, "-5", domainErr.ErrInvalidInput},
		{"rounds to zero", b.NoteID, "0.004", domainErr.ErrInvalidInput},
		{"unknown note", uuid.New(), "5", domainErr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coord.RecordCash(context.Background(), desk, tt.noteID, decimal.RequireFromString(tt.amount), nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, f.store.count())
}

func TestRecordCash_DuplicateReferenceIsNoOp(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5000)
	ref := "receipt-0042"

	_, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("10"), &ref)
	require.NoError(t, err)
	sum, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("10"), &ref)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), sum.PaidCents)
	assert.Equal(t, 1, f.store.count())
}

func TestRecordCash_EmitsPaymentRecorded(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5000)

	_, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("12.34"), nil)
	require.NoError(t, err)

	require.Len(t, f.events.events, 1)
	ev, ok := f.events.events[0].(contracts.PaymentRecorded)
	require.True(t, ok)
	assert.Equal(t, contracts.EventPaymentRecorded, ev.Type)
	assert.Equal(t, int64(1234), ev.AmountCents)
	assert.Equal(t, "cash", ev.Method)
	require.NotNil(t, ev.ActorID)
	assert.Equal(t, "7", *ev.ActorID)
}

func TestCreateIntent(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	half := decimal.RequireFromString("20.00")
	intent, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, &half)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_secret", intent.ClientSecret)
	assert.Equal(t, int64(2000), intent.AmountCents)
	assert.Equal(t, b.ID, intent.BillingID)

	req := f.gateway.last
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, b.ID, req.Attributes.BillingID)
	assert.Equal(t, desk, req.Attributes.Actor)

	// Intent creation never touches the ledger.
	assert.Equal(t, 0, f.store.count())
}

func TestCreateIntent_AmountRules(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	t.Run("blank amount charges the full balance", func(t *testing.T) {
		intent, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5550), intent.AmountCents)
	})
	t.Run("more than balance is clamped", func(t *testing.T) {
		amt := decimal.RequireFromString("80")
		intent, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
		require.NoError(t, err)
		assert.Equal(t, int64(5550), intent.AmountCents)
	})
	t.Run("negative amount uses its magnitude", func(t *testing.T) {
		amt := decimal.RequireFromString("-10")
		intent, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), intent.AmountCents)
	})
}

func TestCreateIntent_MinimumChargeCheckedBeforeGateway(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	amt := decimal.RequireFromString("0.49")
	_, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
	assert.ErrorIs(t, err, domainErr.ErrInvalidInput)
	assert.Contains(t, err.Error(), "0.50")
	assert.Equal(t, int32(0), f.gateway.calls.Load())

	// A 0.30 balance can never be charged by card.
	small := f.store.addBilling(30)
	_, err = f.coord.CreateIntent(context.Background(), desk, small.NoteID, nil)
	assert.ErrorIs(t, err, domainErr.ErrInvalidInput)
	assert.Equal(t, int32(0), f.gateway.calls.Load())
}

func TestCreateIntent_NoBalanceAndNotFound(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(0)

	_, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
	assert.ErrorIs(t, err, domainErr.ErrNoBalance)

	_, err = f.coord.CreateIntent(context.Background(), desk, uuid.New(), nil)
	assert.ErrorIs(t, err, domainErr.ErrNotFound)
	assert.Equal(t, int32(0), f.gateway.calls.Load())
}

func TestCreateIntent_GatewayFailures(t *testing.T) {
	tests := []struct {
		name      string
		gateway   *MockGateway
		wantErr   error
		wantRetry bool
	}{
		{"provider down", &MockGateway{err: ErrProviderDown}, domainErr.ErrExternalService, true},
		{"rejected", &MockGateway{err: ErrPaymentFailed}, domainErr.ErrExternalService, false},
		{"amount refused", &MockGateway{err: ErrInvalidAmount}, domainErr.ErrInvalidInput, false},
		{"timeout", &MockGateway{delay: time.Second}, domainErr.ErrExternalService, true},
		{"no client secret", &MockGateway{result: &IntentResult{IntentID: "pi_x"}}, domainErr.ErrExternalService, false},
		{"intent already succeeded", &MockGateway{result: &IntentResult{IntentID: "pi_x", ClientSecret: "s", Status: PaymentSucceeded}}, domainErr.ErrExternalService, false},
		{"intent canceled", &MockGateway{result: &IntentResult{IntentID: "pi_x", ClientSecret: "s", Status: PaymentFailed}}, domainErr.ErrExternalService, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.gateway = tt.gateway
			f.coord.gateway = tt.gateway
			f.coord.gatewayTimeout = 20 * time.Millisecond
			b := f.store.addBilling(5000)

			_, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantRetry, domainErr.IsRetryable(err))
			assert.Equal(t, 0, f.store.count())
		})
	}
}

func TestCreateIntent_IdempotencyKey(t *testing.T) {
	f := newFixture()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.coord.now = func() time.Time { return now }
	b := f.store.addBilling(5000)

	_, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
	require.NoError(t, err)
	first := f.gateway.last.IdempotencyKey
	require.NotEmpty(t, first)
	assert.Contains(t, first, b.ID.String())

	now = now.Add(time.Minute)
	_, err = f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
	require.NoError(t, err)
	assert.Equal(t, first, f.gateway.last.IdempotencyKey, "a retry shortly after reuses the key")

	amt := decimal.RequireFromString("20")
	_, err = f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
	require.NoError(t, err)
	assert.NotEqual(t, first, f.gateway.last.IdempotencyKey, "a different amount is a different intent")

	_, err = f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("10"), nil)
	require.NoError(t, err)
	_, err = f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
	require.NoError(t, err)
	afterCash := f.gateway.last.IdempotencyKey
	assert.NotEqual(t, first, afterCash)

	now = now.Add(time.Hour)
	_, err = f.coord.CreateIntent(context.Background(), desk, b.NoteID, &amt)
	require.NoError(t, err)
	assert.NotEqual(t, afterCash, f.gateway.last.IdempotencyKey, "a later attempt opens a fresh intent")
}

func TestCreateIntent_ConcurrentDuplicatesShareOneGatewayCall(t *testing.T) {
	f := newFixture()
	f.gateway.delay = 50 * time.Millisecond
	b := f.store.addBilling(5000)

	var wg sync.WaitGroup
	secrets := make([]string, 5)
	for i := range secrets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			intent, err := f.coord.CreateIntent(context.Background(), desk, b.NoteID, nil)
			if err == nil {
				secrets[i] = intent.ClientSecret
			}
		}(i)
	}
	wg.Wait()

	for _, s := range secrets {
		assert.Equal(t, "pi_test_secret", s)
	}
	assert.Less(t, f.gateway.calls.Load(), int32(5))
}

func TestApplySettlement_DuplicateDelivery(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)
	evt := settlement(b, "evt_dup", 2000)

	first, err := f.coord.ApplySettlement(context.Background(), evt)
	require.NoError(t, err)
	second, err := f.coord.ApplySettlement(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, first)
	assert.Equal(t, OutcomeDuplicate, second)
	assert.Equal(t, 1, f.store.count())

	sum, _ := f.coord.ledger.GetSummary(context.Background(), b.NoteID)
	assert.Equal(t, int64(2000), sum.PaidCents)
}

func TestApplySettlement_Ignored(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	unknown := settlement(b, "evt_a", 1000)
	unknown.Attributes.BillingID = uuid.New()

	missing := settlement(b, "evt_b", 1000)
	missing.Attributes = IntentAttributes{}
	missing.AttributesErr = ErrMissingBilling

	euro := settlement(b, "evt_c", 1000)
	euro.Currency = "eur"

	noID := settlement(b, "", 1000)

	for name, evt := range map[string]SettlementEvent{"unknown billing": unknown, "missing billing": missing, "currency": euro, "no event id": noID} {
		t.Run(name, func(t *testing.T) {
			outcome, err := f.coord.ApplySettlement(context.Background(), evt)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, outcome)
		})
	}
	assert.Equal(t, 0, f.store.count())
}

func TestApplySettlement_Overcollected(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)
	_, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("30"), nil)
	require.NoError(t, err)

	// The payer opened an intent for the full 55.50 before the cash was taken.
	outcome, err := f.coord.ApplySettlement(context.Background(), settlement(b, "evt_late", 5550))
	require.NoError(t, err)
	assert.Equal(t, OutcomeOvercollected, outcome)

	sum, _ := f.coord.ledger.GetSummary(context.Background(), b.NoteID)
	assert.Equal(t, int64(5550), sum.PaidCents)
	assert.Equal(t, int64(0), sum.BalanceCents)

	var flagged *contracts.PaymentOvercollected
	for _, e := range f.events.events {
		if ev, ok := e.(contracts.PaymentOvercollected); ok {
			flagged = &ev
		}
	}
	require.NotNil(t, flagged)
	assert.Equal(t, int64(5550), flagged.ReceivedCents)
	assert.Equal(t, int64(2550), flagged.AppliedCents)
}

func TestApplySettlement_LateSettlementOnSettledBillAlertsOnce(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5000)
	_, err := f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("50.00"), nil)
	require.NoError(t, err)

	evt := settlement(b, "evt_late", 5000)
	outcomes := make([]SettlementOutcome, 0, 3)
	for i := 0; i < 3; i++ {
		outcome, err := f.coord.ApplySettlement(context.Background(), evt)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}
	assert.Equal(t, []SettlementOutcome{OutcomeOvercollected, OutcomeDuplicate, OutcomeDuplicate}, outcomes)

	flagged := 0
	for _, e := range f.events.events {
		if ev, ok := e.(contracts.PaymentOvercollected); ok {
			flagged++
			assert.Equal(t, int64(5000), ev.ReceivedCents)
			assert.Equal(t, int64(0), ev.AppliedCents)
		}
	}
	assert.Equal(t, 1, flagged)
	assert.Equal(t, 1, f.store.count())
}

func TestApplySettlement_TransientStoreErrorIsReturned(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)
	f.store.failWith = errors.New("connection reset")

	_, err := f.coord.ApplySettlement(context.Background(), settlement(b, "evt_x", 1000))
	assert.Error(t, err)
}

func TestHandleSettlementEvent(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5550)

	t.Run("bad signature is not acknowledged", func(t *testing.T) {
		f.webhook.evt, f.webhook.err = nil, ErrBadSignature
		err := f.coord.HandleSettlementEvent(context.Background(), []byte("{}"), nil)
		assert.ErrorIs(t, err, domainErr.ErrUnauthorized)
	})
	t.Run("malformed payload is acknowledged", func(t *testing.T) {
		f.webhook.evt, f.webhook.err = nil, ErrMalformedEvent
		assert.NoError(t, f.coord.HandleSettlementEvent(context.Background(), []byte("{"), nil))
	})
	t.Run("untracked event type is acknowledged", func(t *testing.T) {
		f.webhook.evt, f.webhook.err = nil, nil
		assert.NoError(t, f.coord.HandleSettlementEvent(context.Background(), []byte("{}"), nil))
	})
	t.Run("settlement is applied", func(t *testing.T) {
		evt := settlement(b, "evt_ok", 5550)
		f.webhook.evt, f.webhook.err = &evt, nil
		assert.NoError(t, f.coord.HandleSettlementEvent(context.Background(), []byte("{}"), nil))
		assert.Equal(t, 1, f.store.count())
	})
	assert.Equal(t, 1, f.store.count())
}

func TestConcurrentCashAndCardNeverExceedTotal(t *testing.T) {
	f := newFixture()
	b := f.store.addBilling(5000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.coord.RecordCash(context.Background(), desk, b.NoteID, decimal.RequireFromString("10"), nil)
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = f.coord.ApplySettlement(context.Background(), settlement(b, "evt_"+uuid.NewString(), 1000))
		}(i)
	}
	wg.Wait()

	sum, err := f.coord.ledger.GetSummary(context.Background(), b.NoteID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), sum.PaidCents)
	assert.Equal(t, int64(0), sum.BalanceCents)
}
