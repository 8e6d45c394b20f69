// services/payment-service/internal/store/memory/memory.store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// Store is an in-process payment.Facade for local runs and tests. Nothing survives a restart.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]payment.CheckoutSession
	transactions map[string]payment.TransactionRecord
	tokens       map[string]payment.TokenRecord
	schedules    map[string]payment.ScheduleRecord
	instructions []payment.SubscriptionInstruction
	webhooks     []payment.WebhookRecord
	verifs       []payment.VerificationRecord
	grants       []payment.EntitlementGrant
	denials      []payment.EntitlementGrant
	now          func() time.Time
}

var _ payment.Facade = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]payment.CheckoutSession),
		transactions: make(map[string]payment.TransactionRecord),
		tokens:       make(map[string]payment.TokenRecord),
		schedules:    make(map[string]payment.ScheduleRecord),
		now:          time.Now,
	}
}

func (s *Store) SaveSession(ctx context.Context, session payment.CheckoutSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSessionsBy(ctx context.Context, filter payment.SessionFilter) ([]payment.CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []payment.CheckoutSession
	for _, session := range s.sessions {
		if filter.Matches(session) {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) SaveTransaction(ctx context.Context, rec payment.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[rec.GatewayTxnID] = rec
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, gatewayTxnID string) (*payment.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.transactions[gatewayTxnID]
	if !ok {
		return nil, payment.ErrTransactionNotFound
	}
	return &rec, nil
}

// ListPendingTransactions returns the oldest pending records first.
func (s *Store) ListPendingTransactions(ctx context.Context, limit int, olderThan time.Duration) ([]payment.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-olderThan)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []payment.TransactionRecord
	for _, rec := range s.transactions {
		if rec.Status == payment.TransactionPending && rec.CreatedAt.Before(cutoff) {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GrantAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, grant)
	return nil
}

func (s *Store) DenyAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denials = append(s.denials, grant)
	return nil
}

func (s *Store) SaveToken(ctx context.Context, tok payment.TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tokens[tok.ID]; ok {
		tok = mergeToken(old, tok)
	}
	s.tokens[tok.ID] = tok
	return nil
}

func (s *Store) UpdateToken(ctx context.Context, tok payment.TokenRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[tok.ID]
	if !ok {
		return payment.ErrTokenNotFound
	}
	s.tokens[tok.ID] = mergeToken(old, tok)
	return nil
}

// mergeToken keeps stored card details the update did not carry.
func mergeToken(old, upd payment.TokenRecord) payment.TokenRecord {
	if upd.Brand == "" {
		upd.Brand = old.Brand
	}
	if upd.Last4 == "" {
		upd.Last4 = old.Last4
	}
	if upd.ExpiryMM == 0 {
		upd.ExpiryMM, upd.ExpiryYY = old.ExpiryMM, old.ExpiryYY
	}
	if upd.UserID == "" {
		upd.UserID = old.UserID
	}
	upd.CreatedAt = old.CreatedAt
	return upd
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	return nil
}

func (s *Store) GetTokensByUser(ctx context.Context, userID string) ([]payment.TokenRecord, error) {
	return s.tokensWhere(ctx, func(t payment.TokenRecord) bool { return t.UserID == userID })
}

func (s *Store) GetTokensExpiringIn(ctx context.Context, year, month int) ([]payment.TokenRecord, error) {
	return s.tokensWhere(ctx, func(t payment.TokenRecord) bool { return t.ExpiryYY == year && t.ExpiryMM == month })
}

func (s *Store) tokensWhere(ctx context.Context, match func(payment.TokenRecord) bool) ([]payment.TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []payment.TokenRecord
	for _, t := range s.tokens {
		if match(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpsertSchedule(ctx context.Context, rec payment.ScheduleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[rec.ScheduleID] = rec
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, scheduleID string) (*payment.ScheduleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.schedules[scheduleID]
	if !ok {
		return nil, payment.ErrScheduleNotFound
	}
	return &rec, nil
}

func (s *Store) SaveInstruction(ctx context.Context, ins payment.SubscriptionInstruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instructions = append(s.instructions, ins)
	return nil
}

func (s *Store) SaveWebhook(ctx context.Context, rec payment.WebhookRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks = append(s.webhooks, rec)
	return nil
}

func (s *Store) SaveVerification(ctx context.Context, rec payment.VerificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifs = append(s.verifs, rec)
	return nil
}

// Snapshot accessors, used by tests and the debug endpoint.

func (s *Store) Webhooks() []payment.WebhookRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.WebhookRecord(nil), s.webhooks...)
}

func (s *Store) Transactions() []payment.TransactionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payment.TransactionRecord, 0, len(s.transactions))
	for _, rec := range s.transactions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GatewayTxnID < out[j].GatewayTxnID })
	return out
}

func (s *Store) Grants() []payment.EntitlementGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.EntitlementGrant(nil), s.grants...)
}

func (s *Store) Denials() []payment.EntitlementGrant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.EntitlementGrant(nil), s.denials...)
}

func (s *Store) Instructions() []payment.SubscriptionInstruction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.SubscriptionInstruction(nil), s.instructions...)
}

func (s *Store) Verifications() []payment.VerificationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.VerificationRecord(nil), s.verifs...)
}
