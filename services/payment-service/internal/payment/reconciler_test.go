// services/payment-service/internal/payment/reconciler_test.go
package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tanmoy095/LogiSynapse/shared/contracts"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(f *MockFacade, p *MockPublisher) *Reconciler {
	opts := []ReconcilerOption{WithClock(func() time.Time { return fixedNow })}
	if p != nil {
		opts = append(opts, WithPublisher(p))
	}
	return NewReconciler(f, opts...)
}

func txnEvent(kind EventKind, id, code string) NormalizedEvent {
	return NormalizedEvent{
		Kind:     kind,
		Provider: "cardgate",
		Transaction: &TransactionEvent{
			Transaction: NormalizedTransaction{
				GatewayTxnID: id,
				Amount:       decimal.RequireFromString("10.00"),
				Currency:     "USD",
				ResultCode:   code,
				Approved:     IsApprovedCode(code),
			},
			UserID:  "u1",
			OrderID: "o1",
		},
	}
}

// Two deliveries of the same successful payment end with exactly one success record.
func TestReconciler_DuplicateSuccessConverges(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ev := txnEvent(EventPaymentSuccess, "T1", "000.000.000")

	for i := 0; i < 2; i++ {
		if err := r.Handle(context.Background(), ev); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	if len(f.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(f.transactions))
	}
	if got := f.transactions["T1"].Status; got != TransactionSuccess {
		t.Fatalf("expected success, got %s", got)
	}
	if len(f.grants) < 1 {
		t.Fatal("expected at least one grant")
	}
}

func TestReconciler_SuccessStoresTokenAndPublishes(t *testing.T) {
	f := NewMockFacade()
	p := &MockPublisher{}
	r := newTestReconciler(f, p)
	ev := txnEvent(EventPaymentSuccess, "T2", "000.100.110")
	ev.Transaction.RegistrationID = "REG-1"

	if err := r.Handle(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.tokens["REG-1"]; !ok {
		t.Fatal("registration token not saved")
	}
	if len(p.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(p.events))
	}
	msg := p.events[0].(contracts.PaymentEvent)
	if msg.EventKind != string(EventPaymentSuccess) || msg.Amount != "10" || msg.GatewayTxnID != "T2" {
		t.Fatalf("unexpected event %+v", msg)
	}
	if f.transactions["T2"].UIMessage == "" {
		t.Fatal("ui message not stored")
	}
}

func TestReconciler_DenialKinds(t *testing.T) {
	tests := []struct {
		kind   EventKind
		status TransactionStatus
	}{
		{EventPaymentFailed, TransactionFailed},
		{EventRefund, TransactionRefunded},
		{EventChargeback, TransactionChargeback},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := NewMockFacade()
			r := newTestReconciler(f, nil)
			if err := r.Handle(context.Background(), txnEvent(tt.kind, "T", "800.100.151")); err != nil {
				t.Fatal(err)
			}
			if got := f.transactions["T"].Status; got != tt.status {
				t.Fatalf("status = %s, want %s", got, tt.status)
			}
			if len(f.denials) != 1 || len(f.grants) != 0 {
				t.Fatalf("grants=%d denials=%d", len(f.grants), len(f.denials))
			}
		})
	}
}

func TestReconciler_NeverRevertsSuccess(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ctx := context.Background()

	if err := r.Handle(ctx, txnEvent(EventPaymentSuccess, "T3", "000.000.000")); err != nil {
		t.Fatal(err)
	}
	late := txnEvent(EventPaymentPending, "T3", "000.200.000")
	if err := r.Handle(ctx, late); err != nil {
		t.Fatal(err)
	}
	failed := txnEvent(EventPaymentFailed, "T3", "800.100.151")
	if err := r.Handle(ctx, failed); err != nil {
		t.Fatal(err)
	}
	if got := f.transactions["T3"].Status; got != TransactionSuccess {
		t.Fatalf("success was overwritten with %s", got)
	}
	if len(f.denials) != 0 {
		t.Fatal("illegal regression must not deny access")
	}
}

func TestReconciler_KeepsStoredOwnerOnRefund(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ctx := context.Background()
	if err := r.Handle(ctx, txnEvent(EventPaymentSuccess, "T4", "000.000.000")); err != nil {
		t.Fatal(err)
	}
	refund := txnEvent(EventRefund, "T4", "000.000.000")
	refund.Transaction.UserID = ""
	refund.Transaction.OrderID = ""
	if err := r.Handle(ctx, refund); err != nil {
		t.Fatal(err)
	}
	rec := f.transactions["T4"]
	if rec.Status != TransactionRefunded || rec.UserID != "u1" || rec.OrderID != "o1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(f.denials) != 1 || f.denials[0].UserID != "u1" {
		t.Fatalf("unexpected denials %+v", f.denials)
	}
}

func TestReconciler_PersistenceErrorPropagates(t *testing.T) {
	f := NewMockFacade()
	f.FailSaveTransaction = errBoom
	r := newTestReconciler(f, nil)
	err := r.Handle(context.Background(), txnEvent(EventPaymentSuccess, "T5", "000.000.000"))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", err)
	}
	if len(f.grants) != 0 {
		t.Fatal("grant must not run after failed save")
	}
}

func TestReconciler_PublishFailureIsNotFatal(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, &MockPublisher{Err: errBoom})
	if err := r.Handle(context.Background(), txnEvent(EventPaymentSuccess, "T6", "000.000.000")); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestReconciler_Registration(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ctx := context.Background()

	upd := NormalizedEvent{Kind: EventRegistrationUpdated, Registration: &RegistrationRef{RegistrationID: "R1", Last4: "4242"}}
	if err := r.Handle(ctx, upd); err != nil {
		t.Fatalf("update of unknown token should fall back to save: %v", err)
	}
	if f.tokens["R1"].Last4 != "4242" {
		t.Fatal("token not stored")
	}
	upd.Registration.Last4 = "1111"
	if err := r.Handle(ctx, upd); err != nil {
		t.Fatal(err)
	}
	if f.tokens["R1"].Last4 != "1111" {
		t.Fatal("token not updated")
	}
}

func TestReconciler_ScheduleLifecycle(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ctx := context.Background()
	sched := func(kind EventKind) NormalizedEvent {
		return NormalizedEvent{Kind: kind, Schedule: &ScheduleRef{ScheduleID: "S1", RegistrationID: "R1", Interval: "monthly"}}
	}

	for _, k := range []EventKind{EventScheduleCreated, EventScheduleRescheduled, EventScheduleCanceled} {
		if err := r.Handle(ctx, sched(k)); err != nil {
			t.Fatalf("%s: %v", k, err)
		}
	}
	if got := f.schedules["S1"].Status; got != ScheduleCanceled {
		t.Fatalf("status = %s, want canceled", got)
	}

	// canceled -> rescheduled is illegal and skipped
	if err := r.Handle(ctx, sched(EventScheduleRescheduled)); err != nil {
		t.Fatal(err)
	}
	if got := f.schedules["S1"].Status; got != ScheduleCanceled {
		t.Fatalf("illegal transition applied: %s", got)
	}
}

func TestReconciler_ScheduleWithoutIDIsStable(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ev := NormalizedEvent{Kind: EventScheduleCreated, Schedule: &ScheduleRef{
		RegistrationID: "R9",
		Transaction:    NormalizedTransaction{Amount: decimal.NewFromInt(5), Currency: "EUR"},
		Interval:       "monthly",
	}}
	for i := 0; i < 2; i++ {
		if err := r.Handle(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.schedules) != 1 {
		t.Fatalf("expected a single generated schedule, got %d", len(f.schedules))
	}
}

func TestReconciler_RiskAndUnknownAreLogOnly(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)
	ctx := context.Background()
	if err := r.Handle(ctx, NormalizedEvent{Kind: EventRiskFlagged, Risk: &RiskSignal{Score: 90}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Handle(ctx, NormalizedEvent{Kind: EventUnknown, Raw: map[string]any{"type": "x"}}); err != nil {
		t.Fatal(err)
	}
	if len(f.transactions)+len(f.tokens)+len(f.schedules)+len(f.grants)+len(f.denials) != 0 {
		t.Fatal("log-only events touched the facade")
	}
}

func TestReconciler_RejectsMalformed(t *testing.T) {
	r := newTestReconciler(NewMockFacade(), nil)
	err := r.Handle(context.Background(), NormalizedEvent{Kind: EventPaymentSuccess})
	if !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

// Events without a gateway id cannot be keyed; storing them under "" would hand a later
// payer's entitlement to whoever paid first.
func TestReconciler_RefusesTransactionWithoutID(t *testing.T) {
	f := NewMockFacade()
	r := newTestReconciler(f, nil)

	for _, user := range []string{"alice", "bob"} {
		ev := txnEvent(EventPaymentSuccess, "", "000.000.000")
		ev.Transaction.UserID = user
		if err := r.Handle(context.Background(), ev); !errors.Is(err, ErrMissingTransactionID) {
			t.Fatalf("%s: expected ErrMissingTransactionID, got %v", user, err)
		}
	}
	for _, kind := range []EventKind{EventPaymentPending, EventPaymentFailed, EventRefund} {
		if err := r.Handle(context.Background(), txnEvent(kind, "", "800.100.151")); !errors.Is(err, ErrMissingTransactionID) {
			t.Fatalf("%s: expected ErrMissingTransactionID, got %v", kind, err)
		}
	}
	if len(f.transactions) != 0 {
		t.Fatalf("expected no stored transactions, got %d", len(f.transactions))
	}
	if len(f.grants) != 0 || len(f.denials) != 0 {
		t.Fatalf("expected no entitlement changes, got grants=%v denials=%v", f.grants, f.denials)
	}
}
