// services/payment-service/internal/payment/webhook/stripe/processor.stripeWebhook.go
package stripe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	paymentwebhook "github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
)

const ProviderName = "stripe"

type Processor struct {
	secret string
	now    func() time.Time
}

var _ paymentwebhook.Processor = (*Processor)(nil)

func New(secret string) *Processor {
	return &Processor{secret: secret, now: time.Now}
}

func (p *Processor) Provider() string {
	return ProviderName
}

// VerifyAndParse checks the Stripe-Signature header. A bad signature is an error here rather
// than Verified=false: stripe-go does not hand out the event without a valid one.
func (p *Processor) VerifyAndParse(payload []byte, headers map[string]string) (*paymentwebhook.Delivery, error) {
	// 1. Verify Signature (Security)
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader(headers), p.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe signature invalid: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("stripe payload: %w", err)
	}

	// 2. Map to Domain Event
	ev, err := mapEvent(event)
	if err != nil {
		return nil, err
	}
	ev.Provider = ProviderName
	ev.Raw = raw
	ev.ReceivedAt = p.now()

	return &paymentwebhook.Delivery{
		Event:          ev,
		Payload:        raw,
		IdempotencyKey: event.ID,
		Verified:       true,
	}, nil
}

func mapEvent(event stripe.Event) (payment.NormalizedEvent, error) {
	var data json.RawMessage
	if event.Data != nil {
		data = event.Data.Raw
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.processing":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(data, &pi); err != nil {
			return payment.NormalizedEvent{}, fmt.Errorf("stripe payment_intent: %w", err)
		}
		return paymentIntentEvent(string(event.Type), &pi), nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(data, &ch); err != nil {
			return payment.NormalizedEvent{}, fmt.Errorf("stripe charge: %w", err)
		}
		txnID := ch.ID
		if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
			txnID = ch.PaymentIntent.ID
		}
		return payment.NormalizedEvent{
			Kind: payment.EventRefund,
			Transaction: &payment.TransactionEvent{
				Transaction: payment.NormalizedTransaction{
					GatewayTxnID: txnID,
					Amount:       minorUnits(ch.AmountRefunded),
					Currency:     strings.ToUpper(string(ch.Currency)),
					ResultCode:   "refunded",
					CreatedAt:    unix(ch.Created),
				},
				UserID:  ch.Metadata["user_id"],
				OrderID: ch.Metadata["order_id"],
			},
		}, nil

	case "charge.dispute.created":
		var d stripe.Dispute
		if err := json.Unmarshal(data, &d); err != nil {
			return payment.NormalizedEvent{}, fmt.Errorf("stripe dispute: %w", err)
		}
		txnID := ""
		if d.PaymentIntent != nil {
			txnID = d.PaymentIntent.ID
		}
		if txnID == "" && d.Charge != nil {
			txnID = d.Charge.ID
		}
		return payment.NormalizedEvent{
			Kind: payment.EventChargeback,
			Transaction: &payment.TransactionEvent{
				Transaction: payment.NormalizedTransaction{
					GatewayTxnID: txnID,
					Amount:       minorUnits(d.Amount),
					Currency:     strings.ToUpper(string(d.Currency)),
					ResultCode:   string(d.Reason),
					CreatedAt:    unix(d.Created),
				},
			},
		}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			return payment.NormalizedEvent{}, fmt.Errorf("stripe subscription: %w", err)
		}
		return subscriptionEvent(string(event.Type), &sub), nil
	}

	// events we do not act on are still audited
	return payment.NormalizedEvent{Kind: payment.EventUnknown}, nil
}

func paymentIntentEvent(typ string, pi *stripe.PaymentIntent) payment.NormalizedEvent {
	txn := payment.NormalizedTransaction{
		GatewayTxnID: pi.ID,
		Amount:       minorUnits(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
		ResultCode:   string(pi.Status),
		CreatedAt:    unix(pi.Created),
	}
	kind := payment.EventPaymentFailed
	switch typ {
	case "payment_intent.succeeded":
		kind = payment.EventPaymentSuccess
		txn.Approved = true
	case "payment_intent.processing":
		kind = payment.EventPaymentPending
		txn.Pending = true
	default:
		if pi.LastPaymentError != nil {
			txn.ResultCode = string(pi.LastPaymentError.Code)
			txn.Description = pi.LastPaymentError.Msg
		}
	}
	te := &payment.TransactionEvent{
		Transaction: txn,
		UserID:      pi.Metadata["user_id"],
		OrderID:     pi.Metadata["order_id"],
	}
	if kind == payment.EventPaymentSuccess && pi.PaymentMethod != nil && pi.SetupFutureUsage != "" {
		te.RegistrationID = pi.PaymentMethod.ID
	}
	return payment.NormalizedEvent{Kind: kind, Transaction: te}
}

func subscriptionEvent(typ string, sub *stripe.Subscription) payment.NormalizedEvent {
	kind := payment.EventScheduleRescheduled
	switch {
	case typ == "customer.subscription.created":
		kind = payment.EventScheduleCreated
	case typ == "customer.subscription.deleted", sub.Status == stripe.SubscriptionStatusCanceled:
		kind = payment.EventScheduleCanceled
	}
	ref := &payment.ScheduleRef{
		ScheduleID: sub.ID,
		UserID:     sub.Metadata["user_id"],
	}
	if sub.DefaultPaymentMethod != nil {
		ref.RegistrationID = sub.DefaultPaymentMethod.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		ref.Transaction = payment.NormalizedTransaction{
			Amount:   minorUnits(price.UnitAmount),
			Currency: strings.ToUpper(string(price.Currency)),
		}
		if price.Recurring != nil {
			ref.Interval = string(price.Recurring.Interval)
		}
	}
	return payment.NormalizedEvent{Kind: kind, Schedule: ref}
}

// minorUnits converts Stripe's integer amounts. Zero-decimal currencies are not handled.
func minorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func signatureHeader(headers map[string]string) string {
	if v, ok := headers["Stripe-Signature"]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Stripe-Signature") {
			return v
		}
	}
	return ""
}
