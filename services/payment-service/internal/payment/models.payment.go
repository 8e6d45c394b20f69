// services/payment-service/internal/payment/models.payment.go
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the application-level state of a gateway transaction.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionSuccess    TransactionStatus = "success"
	TransactionFailed     TransactionStatus = "failed"
	TransactionRefunded   TransactionStatus = "refunded"
	TransactionChargeback TransactionStatus = "chargeback"
)

// transactionTransitions lists the statuses a record may move to.
// A record never goes back to an earlier state (success cannot revert to pending).
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:    {TransactionSuccess, TransactionFailed, TransactionRefunded, TransactionChargeback},
	TransactionSuccess:    {TransactionRefunded, TransactionChargeback},
	TransactionFailed:     {},
	TransactionRefunded:   {TransactionChargeback},
	TransactionChargeback: {},
}

// CanTransitionTransaction reports whether a stored record in status from may be overwritten with to.
func CanTransitionTransaction(from, to TransactionStatus) bool {
	for _, next := range transactionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NormalizedTransaction is the gateway-agnostic view of a single transaction.
// Approved and Pending are never both true; both false means declined.
type NormalizedTransaction struct {
	GatewayTxnID string
	Amount       decimal.Decimal
	Currency     string // ISO 4217
	ResultCode   string
	Description  string
	Approved     bool
	Pending      bool
	CreatedAt    time.Time
}

// Status maps the tri-state outcome onto a transaction status.
func (t NormalizedTransaction) Status() TransactionStatus {
	switch {
	case t.Approved:
		return TransactionSuccess
	case t.Pending:
		return TransactionPending
	default:
		return TransactionFailed
	}
}

// TransactionRecord is what the persistence facade stores for every observed transaction.
type TransactionRecord struct {
	GatewayTxnID string
	UserID       string
	OrderID      string
	Amount       decimal.Decimal
	Currency     string
	ResultCode   string
	Status       TransactionStatus
	UIMessage    string
	Raw          map[string]any // original gateway response
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenRecord is a stored card-on-file (registration token).
type TokenRecord struct {
	ID        string // registration id issued by the gateway
	Brand     string
	Last4     string
	ExpiryMM  int
	ExpiryYY  int
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleRecord is a local recurring billing schedule.
type ScheduleRecord struct {
	ScheduleID     string
	RegistrationID string
	UserID         string
	Status         ScheduleStatus
	Amount         decimal.Decimal
	Currency       string
	Interval       string // e.g. "monthly"
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SessionStatus is the lifecycle state of a hosted checkout.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionSuccess SessionStatus = "success"
	SessionFailed  SessionStatus = "failed"
)

// CheckoutSession tracks one hosted-widget payment attempt.
type CheckoutSession struct {
	ID         string
	OrderID    string
	UserID     string
	CheckoutID string // gateway checkout id
	Amount     decimal.Decimal
	Currency   string
	Status     SessionStatus
	CreatedAt  time.Time
}

// SessionFilter narrows GetSessionsBy. Empty fields match everything.
type SessionFilter struct {
	OrderID    string
	UserID     string
	CheckoutID string
	Status     SessionStatus
}

// Matches reports whether s satisfies every non-empty field of f.
func (f SessionFilter) Matches(s CheckoutSession) bool {
	return (f.OrderID == "" || f.OrderID == s.OrderID) &&
		(f.UserID == "" || f.UserID == s.UserID) &&
		(f.CheckoutID == "" || f.CheckoutID == s.CheckoutID) &&
		(f.Status == "" || f.Status == s.Status)
}

// WebhookRecord is the append-only audit entry written for every delivery,
// including unverified and unmapped ones.
type WebhookRecord struct {
	ID             string
	Provider       string
	Kind           EventKind
	Payload        map[string]any
	Verified       bool
	IdempotencyKey string
	CreatedAt      time.Time
}

// VerificationRecord audits a synchronous status check against the gateway.
type VerificationRecord struct {
	ID         string
	CheckoutID string
	ResultCode string
	Status     TransactionStatus
	Raw        map[string]any
	CreatedAt  time.Time
}

// EntitlementGrant is the signal handed to downstream access control.
type EntitlementGrant struct {
	UserID       string
	OrderID      string
	GatewayTxnID string
	Reason       string
}

// InstructionKind tells what a stored subscription instruction asks for.
type InstructionKind string

const (
	InstructionResume    InstructionKind = "resume"
	InstructionDowngrade InstructionKind = "downgrade"
)

// SubscriptionInstruction is a deferred subscription change (resume after pause, downgrade at
// period end). Nothing in this service applies them; a scheduler elsewhere reads them.
type SubscriptionInstruction struct {
	ID          string
	Kind        InstructionKind
	ScheduleID  string
	Recurring   RecurringPlan
	EffectiveAt time.Time
	CreatedAt   time.Time
}

// RecurringPlan describes a schedule to be created from a stored token.
type RecurringPlan struct {
	RegistrationID string
	UserID         string
	Amount         decimal.Decimal
	Currency       string
	Interval       string
}
