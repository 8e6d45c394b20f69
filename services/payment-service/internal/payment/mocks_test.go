// services/payment-service/internal/payment/mocks_test.go
package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockFacade records every call in memory. Fail* fields inject errors.
type MockFacade struct {
	NopFacade

	mu           sync.Mutex
	transactions map[string]TransactionRecord
	tokens       map[string]TokenRecord
	schedules    map[string]ScheduleRecord
	sessions     map[string]CheckoutSession
	instructions []SubscriptionInstruction
	webhooks     []WebhookRecord
	verifs       []VerificationRecord
	grants       []EntitlementGrant
	denials      []EntitlementGrant
	deletedToks  []string

	FailSaveTransaction error
	FailGrant           error
}

func NewMockFacade() *MockFacade {
	return &MockFacade{
		transactions: map[string]TransactionRecord{},
		tokens:       map[string]TokenRecord{},
		schedules:    map[string]ScheduleRecord{},
		sessions:     map[string]CheckoutSession{},
	}
}

func (m *MockFacade) SaveSession(_ context.Context, s CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MockFacade) GetSessionsBy(_ context.Context, f SessionFilter) ([]CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CheckoutSession
	for _, s := range m.sessions {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockFacade) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockFacade) SaveTransaction(_ context.Context, rec TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaveTransaction != nil {
		return m.FailSaveTransaction
	}
	m.transactions[rec.GatewayTxnID] = rec
	return nil
}

func (m *MockFacade) GetTransaction(_ context.Context, id string) (*TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &rec, nil
}

func (m *MockFacade) ListPendingTransactions(_ context.Context, limit int, _ time.Duration) ([]TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TransactionRecord
	for _, rec := range m.transactions {
		if rec.Status == TransactionPending && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockFacade) GrantAccess(_ context.Context, g EntitlementGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGrant != nil {
		return m.FailGrant
	}
	m.grants = append(m.grants, g)
	return nil
}

func (m *MockFacade) DenyAccess(_ context.Context, g EntitlementGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denials = append(m.denials, g)
	return nil
}

func (m *MockFacade) SaveToken(_ context.Context, tok TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tok.ID] = tok
	return nil
}

func (m *MockFacade) UpdateToken(_ context.Context, tok TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tok.ID]; !ok {
		return ErrTokenNotFound
	}
	m.tokens[tok.ID] = tok
	return nil
}

func (m *MockFacade) DeleteToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	m.deletedToks = append(m.deletedToks, id)
	return nil
}

func (m *MockFacade) GetTokensByUser(_ context.Context, userID string) ([]TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TokenRecord
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockFacade) GetTokensExpiringIn(_ context.Context, year, month int) ([]TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TokenRecord
	for _, t := range m.tokens {
		if t.ExpiryYY == year && t.ExpiryMM == month {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockFacade) UpsertSchedule(_ context.Context, rec ScheduleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[rec.ScheduleID] = rec
	return nil
}

func (m *MockFacade) GetSchedule(_ context.Context, id string) (*ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return &rec, nil
}

func (m *MockFacade) SaveInstruction(_ context.Context, ins SubscriptionInstruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions = append(m.instructions, ins)
	return nil
}

func (m *MockFacade) SaveWebhook(_ context.Context, rec WebhookRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, rec)
	return nil
}

func (m *MockFacade) SaveVerification(_ context.Context, rec VerificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifs = append(m.verifs, rec)
	return nil
}

// MockPublisher collects published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []interface{}
	Err    error
}

func (p *MockPublisher) Publish(_ context.Context, _ string, v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, v)
	return nil
}

// MockGateway returns canned bodies and counts calls per method.
type MockGateway struct {
	mu    sync.Mutex
	calls map[string]int

	CheckoutBody map[string]any
	StatusBody   map[string]any
	PaymentBody  map[string]any
	DebitBody    map[string]any
	RefundBody   map[string]any
	RegisterBody map[string]any
	ScheduleBody map[string]any

	Err            error
	CancelErr      error
	CreateSchedErr error
	DebitErr       error
}

func (g *MockGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	g.calls[name]++
}

func (g *MockGateway) Calls(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *MockGateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *MockGateway) CreateCheckout(context.Context, CheckoutParams) (map[string]any, error) {
	g.record("CreateCheckout")
	return g.CheckoutBody, g.Err
}

func (g *MockGateway) GetCheckoutStatus(context.Context, string) (map[string]any, error) {
	g.record("GetCheckoutStatus")
	return g.StatusBody, g.Err
}

func (g *MockGateway) GetPayment(context.Context, string) (map[string]any, error) {
	g.record("GetPayment")
	return g.PaymentBody, g.Err
}

func (g *MockGateway) DebitCard(context.Context, CardDebitParams) (map[string]any, error) {
	g.record("DebitCard")
	return g.DebitBody, g.DebitErr
}

func (g *MockGateway) DebitToken(context.Context, TokenDebitParams) (map[string]any, error) {
	g.record("DebitToken")
	return g.DebitBody, g.DebitErr
}

func (g *MockGateway) Refund(context.Context, string, decimal.Decimal, string) (map[string]any, error) {
	g.record("Refund")
	return g.RefundBody, g.Err
}

func (g *MockGateway) RegisterCard(context.Context, Card) (map[string]any, error) {
	g.record("RegisterCard")
	return g.RegisterBody, g.Err
}

func (g *MockGateway) DeleteRegistration(context.Context, string) error {
	g.record("DeleteRegistration")
	return g.Err
}

func (g *MockGateway) CreateSchedule(context.Context, RecurringPlan) (map[string]any, error) {
	g.record("CreateSchedule")
	return g.ScheduleBody, g.CreateSchedErr
}

func (g *MockGateway) CancelSchedule(context.Context, string) error {
	g.record("CancelSchedule")
	return g.CancelErr
}

var errBoom = errors.New("boom")
