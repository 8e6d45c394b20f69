// services/payment-service/internal/payment/events.payment.go
package payment

import (
	"fmt"
	"time"
)

// EventKind is the closed set of normalized webhook events.
type EventKind string

const (
	EventPaymentSuccess      EventKind = "payment_success"
	EventPaymentFailed       EventKind = "payment_failed"
	EventPaymentPending      EventKind = "payment_pending"
	EventRefund              EventKind = "refund"
	EventChargeback          EventKind = "chargeback"
	EventRegistrationCreated EventKind = "registration_created"
	EventRegistrationUpdated EventKind = "registration_updated"
	EventScheduleCreated     EventKind = "schedule_created"
	EventScheduleRescheduled EventKind = "schedule_rescheduled"
	EventScheduleCanceled    EventKind = "schedule_canceled"
	EventRiskFlagged         EventKind = "risk_flagged"
	EventRiskCleared         EventKind = "risk_cleared"
	EventUnknown             EventKind = "unknown"
)

type variant int

const (
	variantNone variant = iota
	variantTransaction
	variantRegistration
	variantSchedule
	variantRisk
)

// kindVariant says which sub-shape each kind carries.
var kindVariant = map[EventKind]variant{
	EventPaymentSuccess:      variantTransaction,
	EventPaymentFailed:       variantTransaction,
	EventPaymentPending:      variantTransaction,
	EventRefund:              variantTransaction,
	EventChargeback:          variantTransaction,
	EventRegistrationCreated: variantRegistration,
	EventRegistrationUpdated: variantRegistration,
	EventScheduleCreated:     variantSchedule,
	EventScheduleRescheduled: variantSchedule,
	EventScheduleCanceled:    variantSchedule,
	EventRiskFlagged:         variantRisk,
	EventRiskCleared:         variantRisk,
	EventUnknown:             variantNone,
}

// TransactionEvent is the transaction-family payload. RegistrationID is set when a
// successful payment also stored the card.
type TransactionEvent struct {
	Transaction    NormalizedTransaction
	RegistrationID string
	UserID         string
	OrderID        string
}

// RegistrationRef identifies a card-on-file in registration events.
type RegistrationRef struct {
	RegistrationID string
	UserID         string
	Brand          string
	Last4          string
	ExpiryMM       int
	ExpiryYY       int
}

// ScheduleRef identifies a schedule in schedule events.
type ScheduleRef struct {
	ScheduleID     string
	RegistrationID string
	UserID         string
	Transaction    NormalizedTransaction // amount/currency of the recurring charge, if sent
	Interval       string
}

// RiskSignal carries the gateway's fraud screening output.
type RiskSignal struct {
	Score        float64
	Reason       string
	GatewayTxnID string
}

// NormalizedEvent is a tagged union: exactly one of Transaction, Registration,
// Schedule or Risk is set, matching Kind. EventUnknown carries only Raw.
type NormalizedEvent struct {
	Kind         EventKind
	Provider     string
	Transaction  *TransactionEvent
	Registration *RegistrationRef
	Schedule     *ScheduleRef
	Risk         *RiskSignal
	Raw          map[string]any
	ReceivedAt   time.Time
}

// Validate checks the one-variant invariant.
func (e NormalizedEvent) Validate() error {
	want, ok := kindVariant[e.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	set := 0
	got := variantNone
	if e.Transaction != nil {
		set++
		got = variantTransaction
	}
	if e.Registration != nil {
		set++
		got = variantRegistration
	}
	if e.Schedule != nil {
		set++
		got = variantSchedule
	}
	if e.Risk != nil {
		set++
		got = variantRisk
	}
	if set > 1 || got != want {
		return fmt.Errorf("%w: kind %s", ErrMalformedEvent, e.Kind)
	}
	return nil
}

// IsTransactionKind reports whether k carries a TransactionEvent.
func IsTransactionKind(k EventKind) bool {
	return kindVariant[k] == variantTransaction
}
