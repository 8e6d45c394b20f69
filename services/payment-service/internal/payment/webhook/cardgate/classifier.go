package cardgate

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// transaction sub-objects, first present wins
var txnObjects = []string{"payment", "transaction", "txn"}

// Classify turns a decrypted payload into a NormalizedEvent. It never fails: anything it
// cannot place becomes EventUnknown carrying the raw payload.
func Classify(body map[string]any, defaultCurrency string) payment.NormalizedEvent {
	typ := strings.ToLower(payment.FirstString(body, "type", "eventType"))
	sub := subObject(body, txnObjects...)
	txn := payment.NormalizeTransaction(sub, defaultCurrency)

	ev := payment.NormalizedEvent{Raw: body}
	has := func(s string) bool { return strings.Contains(typ, s) }

	// Refund and chargeback go first so "payment.refund" never reads as a payment.
	switch {
	case has("refund"):
		ev.Kind = payment.EventRefund
		ev.Transaction = transactionEvent(body, sub, txn)
	case has("chargeback"):
		ev.Kind = payment.EventChargeback
		ev.Transaction = transactionEvent(body, sub, txn)
	case has("payment") && txn.Approved:
		ev.Kind = payment.EventPaymentSuccess
		ev.Transaction = transactionEvent(body, sub, txn)
		ev.Transaction.RegistrationID = firstOf(body, sub, "registrationId")
	case has("payment") && !txn.Pending:
		ev.Kind = payment.EventPaymentFailed
		ev.Transaction = transactionEvent(body, sub, txn)
	case has("payment"):
		ev.Kind = payment.EventPaymentPending
		ev.Transaction = transactionEvent(body, sub, txn)
	case has("registration") && has("create"):
		ev.Kind = payment.EventRegistrationCreated
		ev.Registration = registrationRef(body)
	case has("registration") && (has("update") || has("upgrade")):
		ev.Kind = payment.EventRegistrationUpdated
		ev.Registration = registrationRef(body)
	case has("schedule") || has("subscription"):
		switch {
		case has("cancel"):
			ev.Kind = payment.EventScheduleCanceled
		case has("reschedul"):
			ev.Kind = payment.EventScheduleRescheduled
		default:
			ev.Kind = payment.EventScheduleCreated
		}
		ev.Schedule = scheduleRef(body, txn, defaultCurrency)
	case has("risk"):
		ev.Kind = payment.EventRiskCleared
		if has("flag") {
			ev.Kind = payment.EventRiskFlagged
		}
		ev.Risk = &payment.RiskSignal{
			Score:        cast.ToFloat64(payment.Lookup(body, "risk.score")),
			Reason:       payment.FirstString(body, "risk.reason", "risk.description", "reason"),
			GatewayTxnID: txn.GatewayTxnID,
		}
		if ev.Risk.Score == 0 {
			ev.Risk.Score = cast.ToFloat64(payment.Lookup(body, "riskScore"))
		}
	default:
		ev.Kind = payment.EventUnknown
	}
	return ev
}

func transactionEvent(body, sub map[string]any, txn payment.NormalizedTransaction) *payment.TransactionEvent {
	return &payment.TransactionEvent{
		Transaction: txn,
		UserID:      firstOf(body, sub, "userId", "customer.merchantCustomerId", "customParameters.userId"),
		OrderID:     firstOf(body, sub, "merchantTransactionId", "orderId"),
	}
}

func registrationRef(body map[string]any) *payment.RegistrationRef {
	reg := subObject(body, "registration", "payload")
	return &payment.RegistrationRef{
		RegistrationID: firstOf(body, reg, "registrationId", "registration.id"),
		UserID:         firstOf(body, reg, "userId", "customer.merchantCustomerId", "customParameters.userId"),
		Brand:          firstOf(body, reg, "paymentBrand", "card.brand"),
		Last4:          firstOf(body, reg, "card.last4Digits", "card.last4"),
		ExpiryMM:       cast.ToInt(strings.TrimLeft(firstOf(body, reg, "card.expiryMonth"), "0")),
		ExpiryYY:       payment.NormalizeExpiryYear(cast.ToInt(firstOf(body, reg, "card.expiryYear"))),
	}
}

func scheduleRef(body map[string]any, txn payment.NormalizedTransaction, defaultCurrency string) *payment.ScheduleRef {
	sched := subObject(body, "schedule", "subscription")
	if txn.GatewayTxnID == "" && txn.Amount.IsZero() && sched != nil {
		txn = payment.NormalizeTransaction(sched, defaultCurrency)
	}
	return &payment.ScheduleRef{
		ScheduleID:     firstOf(body, sched, "scheduleId", "schedule.id", "subscription.id", "id"),
		RegistrationID: firstOf(body, sched, "registrationId"),
		UserID:         firstOf(body, sched, "userId", "customParameters.userId"),
		Transaction:    txn,
		Interval:       firstOf(body, sched, "interval", "job.interval"),
	}
}

// firstOf looks up paths on the payload first, then on the sub-object. The bare "id" path is
// only meaningful on the sub-object since the payload id is the delivery id.
func firstOf(body, sub map[string]any, paths ...string) string {
	top := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "id" {
			top = append(top, p)
		}
	}
	if v := payment.FirstString(body, top...); v != "" {
		return v
	}
	return payment.FirstString(sub, paths...)
}

func subObject(body map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if m, ok := body[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}
