// services/payment-service/internal/payment/payment.interfaces.go
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway abstracts the remote card-processing REST API (the money mover).
// Every call returns the decoded response body; interpretation is left to Normalize.
// It accepts Context for cancellation and timeout propagation.
type Gateway interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (map[string]any, error)
	GetCheckoutStatus(ctx context.Context, checkoutID string) (map[string]any, error)
	GetPayment(ctx context.Context, gatewayTxnID string) (map[string]any, error)
	DebitCard(ctx context.Context, params CardDebitParams) (map[string]any, error)
	DebitToken(ctx context.Context, params TokenDebitParams) (map[string]any, error)
	Refund(ctx context.Context, gatewayTxnID string, amount decimal.Decimal, currency string) (map[string]any, error)
	RegisterCard(ctx context.Context, card Card) (map[string]any, error)
	DeleteRegistration(ctx context.Context, registrationID string) error
	CreateSchedule(ctx context.Context, plan RecurringPlan) (map[string]any, error)
	CancelSchedule(ctx context.Context, scheduleID string) error
}

// CheckoutParams prepares a hosted-widget checkout.
type CheckoutParams struct {
	OrderID            string
	UserID             string
	Amount             decimal.Decimal
	Currency           string
	CreateRegistration bool // ask the widget to also store the card
}

// Card is raw card data for server-to-server calls. It is never persisted.
type Card struct {
	Holder      string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
	Brand       string
}

// CardDebitParams is a one-off server-to-server charge.
type CardDebitParams struct {
	Card     Card
	Amount   decimal.Decimal
	Currency string
	OrderID  string
}

// TokenDebitParams charges a stored registration token.
type TokenDebitParams struct {
	RegistrationID string
	Amount         decimal.Decimal
	Currency       string
	OrderID        string
}

// Persistence facade. The service does not own storage; these ports are implemented by
// internal/store/* and by whatever the host application plugs in.

type SessionStore interface {
	SaveSession(ctx context.Context, s CheckoutSession) error
	GetSessionsBy(ctx context.Context, filter SessionFilter) ([]CheckoutSession, error)
	DeleteSession(ctx context.Context, id string) error
}

type TransactionStore interface {
	SaveTransaction(ctx context.Context, rec TransactionRecord) error
	// GetTransaction returns ErrTransactionNotFound when the id has never been seen.
	GetTransaction(ctx context.Context, gatewayTxnID string) (*TransactionRecord, error)
	// ListPendingTransactions fetches "stuck" records for the reconciliation worker.
	ListPendingTransactions(ctx context.Context, limit int, olderThan time.Duration) ([]TransactionRecord, error)
}

type EntitlementService interface {
	GrantAccess(ctx context.Context, grant EntitlementGrant) error
	DenyAccess(ctx context.Context, grant EntitlementGrant) error
}

type TokenStore interface {
	SaveToken(ctx context.Context, tok TokenRecord) error
	UpdateToken(ctx context.Context, tok TokenRecord) error
	DeleteToken(ctx context.Context, id string) error
	GetTokensByUser(ctx context.Context, userID string) ([]TokenRecord, error)
	GetTokensExpiringIn(ctx context.Context, year, month int) ([]TokenRecord, error)
}

type ScheduleStore interface {
	UpsertSchedule(ctx context.Context, rec ScheduleRecord) error
	// GetSchedule returns ErrScheduleNotFound for unknown ids.
	GetSchedule(ctx context.Context, scheduleID string) (*ScheduleRecord, error)
}

type InstructionStore interface {
	SaveInstruction(ctx context.Context, ins SubscriptionInstruction) error
}

type AuditStore interface {
	SaveWebhook(ctx context.Context, rec WebhookRecord) error
	SaveVerification(ctx context.Context, rec VerificationRecord) error
}

// Facade is the whole persistence surface the core calls into.
type Facade interface {
	SessionStore
	TransactionStore
	EntitlementService
	TokenStore
	ScheduleStore
	InstructionStore
	AuditStore
}

// IdempotencyStore remembers which webhook deliveries were already processed.
type IdempotencyStore interface {
	// Claim returns true when key was not seen before and is now reserved for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete marks a claimed key as processed and keeps it for ttl.
	Complete(ctx context.Context, key string, ttl time.Duration) error
	// Release drops a claim so a redelivery is processed again.
	Release(ctx context.Context, key string) error
}

// EventPublisher fans normalized outcomes out to the rest of the platform.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}
