// services/payment-service/internal/payment/nop_facade.go
package payment

import (
	"context"
	"time"
)

// NopFacade implements every Facade method as a no-op. Host applications that only back part
// of the facade embed it, so a missing method behaves as "nothing to do".
//
//	type myStore struct {
//		payment.NopFacade
//		db *sql.DB
//	}
type NopFacade struct{}

var _ Facade = NopFacade{}

func (NopFacade) SaveSession(context.Context, CheckoutSession) error { return nil }
func (NopFacade) GetSessionsBy(context.Context, SessionFilter) ([]CheckoutSession, error) {
	return nil, nil
}
func (NopFacade) DeleteSession(context.Context, string) error { return nil }
func (NopFacade) SaveTransaction(context.Context, TransactionRecord) error { return nil }
func (NopFacade) GetTransaction(context.Context, string) (*TransactionRecord, error) {
	return nil, ErrTransactionNotFound
}
func (NopFacade) ListPendingTransactions(context.Context, int, time.Duration) ([]TransactionRecord, error) {
	return nil, nil
}
func (NopFacade) GrantAccess(context.Context, EntitlementGrant) error { return nil }
func (NopFacade) DenyAccess(context.Context, EntitlementGrant) error { return nil }
func (NopFacade) SaveToken(context.Context, TokenRecord) error { return nil }
func (NopFacade) UpdateToken(context.Context, TokenRecord) error { return nil }
func (NopFacade) DeleteToken(context.Context, string) error { return nil }
func (NopFacade) GetTokensByUser(context.Context, string) ([]TokenRecord, error) {
	return nil, nil
}
func (NopFacade) GetTokensExpiringIn(context.Context, int, int) ([]TokenRecord, error) {
	return nil, nil
}
func (NopFacade) UpsertSchedule(context.Context, ScheduleRecord) error { return nil }
func (NopFacade) GetSchedule(context.Context, string) (*ScheduleRecord, error) {
	return nil, ErrScheduleNotFound
}
func (NopFacade) SaveInstruction(context.Context, SubscriptionInstruction) error { return nil }
func (NopFacade) SaveWebhook(context.Context, WebhookRecord) error { return nil }
func (NopFacade) SaveVerification(context.Context, VerificationRecord) error { return nil }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
