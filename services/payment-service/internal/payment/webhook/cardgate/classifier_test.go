package cardgate

import (
	"encoding/json"
	"testing"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want payment.EventKind
	}{
		{"approved payment", `{"type":"payment.success","payment":{"id":"T","result":{"code":"000.100.110"}}}`, payment.EventPaymentSuccess},
		{"declined payment", `{"type":"PAYMENT","payment":{"id":"T","result":{"code":"800.100.151","description":"declined"}}}`, payment.EventPaymentFailed},
		{"pending payment", `{"type":"payment","transaction":{"id":"T","result":{"code":"100.400.500","description":"Transaction Pending"}}}`, payment.EventPaymentPending},
		{"refund beats approved payment", `{"type":"payment.refund","payment":{"id":"T","result":{"code":"000.000.000"}}}`, payment.EventRefund},
		{"chargeback", `{"eventType":"payment.chargeback","txn":{"id":"T"}}`, payment.EventChargeback},
		{"registration created", `{"type":"registration.created","registrationId":"R"}`, payment.EventRegistrationCreated},
		{"registration updated", `{"type":"registration.updated","registrationId":"R"}`, payment.EventRegistrationUpdated},
		{"registration upgraded", `{"type":"registration.upgrade","registrationId":"R"}`, payment.EventRegistrationUpdated},
		{"schedule created", `{"type":"schedule.created","scheduleId":"S"}`, payment.EventScheduleCreated},
		{"subscription canceled", `{"type":"subscription.cancelled","scheduleId":"S"}`, payment.EventScheduleCanceled},
		{"schedule rescheduled", `{"type":"schedule.rescheduled","scheduleId":"S"}`, payment.EventScheduleRescheduled},
		{"risk flagged", `{"type":"risk.flagged","risk":{"score":87}}`, payment.EventRiskFlagged},
		{"risk cleared", `{"type":"risk.cleared"}`, payment.EventRiskCleared},
		{"unknown", `{"type":"something.else"}`, payment.EventUnknown},
		{"no type", `{"id":"x"}`, payment.EventUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Classify(decode(t, tt.body), "USD")
			if ev.Kind != tt.want {
				t.Fatalf("kind = %s, want %s", ev.Kind, tt.want)
			}
			if err := ev.Validate(); err != nil {
				t.Fatalf("classified event violates its shape: %v", err)
			}
		})
	}
}

func TestClassify_PaymentFields(t *testing.T) {
	body := decode(t, `{
		"id": "evt-9",
		"type": "payment.success",
		"registrationId": "REG-1",
		"payment": {
			"id": "T-1", "amount": "10.0", "currency": "eur",
			"merchantTransactionId": "order-7",
			"customer": {"merchantCustomerId": "user-3"},
			"result": {"code": "000.100.110"}
		}
	}`)
	ev := Classify(body, "USD")
	te := ev.Transaction
	if te == nil {
		t.Fatal("no transaction")
	}
	if te.Transaction.GatewayTxnID != "T-1" || te.Transaction.Currency != "EUR" || te.Transaction.Amount.String() != "10" {
		t.Fatalf("unexpected transaction %+v", te.Transaction)
	}
	if te.RegistrationID != "REG-1" || te.UserID != "user-3" || te.OrderID != "order-7" {
		t.Fatalf("unexpected refs %+v", te)
	}
}

func TestClassify_RegistrationAndSchedule(t *testing.T) {
	reg := Classify(decode(t, `{"type":"registration.created","registration":{"id":"R-2","paymentBrand":"MASTER","card":{"last4Digits":"0004","expiryMonth":"09","expiryYear":"2029"}},"userId":"u"}`), "USD")
	r := reg.Registration
	if r.RegistrationID != "R-2" || r.Brand != "MASTER" || r.Last4 != "0004" || r.ExpiryMM != 9 || r.ExpiryYY != 2029 || r.UserID != "u" {
		t.Fatalf("unexpected registration %+v", r)
	}

	sched := Classify(decode(t, `{"id":"evt","type":"schedule.created","schedule":{"id":"S-1","registrationId":"R-2","amount":"30","currency":"USD","interval":"monthly"}}`), "USD")
	s := sched.Schedule
	if s.ScheduleID != "S-1" || s.RegistrationID != "R-2" || s.Interval != "monthly" || s.Transaction.Amount.String() != "30" {
		t.Fatalf("unexpected schedule %+v", s)
	}
}

func TestClassify_UnknownKeepsRaw(t *testing.T) {
	body := decode(t, `{"type":"weird","x":1}`)
	ev := Classify(body, "USD")
	if ev.Raw == nil || ev.Transaction != nil || ev.Registration != nil || ev.Schedule != nil || ev.Risk != nil {
		t.Fatalf("unexpected unknown event %+v", ev)
	}
}
