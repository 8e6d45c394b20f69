//services/payment-service/internal/payment/reconciler.payment.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tanmoy095/LogiSynapse/shared/contracts"
	"github.com/google/uuid"
)

// Reconciler applies normalized events to the persistence facade. It is the bridge between
// the outside world (webhooks, status polls) and our records.
//
// Handle is not atomic across records. A persistence error is returned as-is so the webhook
// transport answers non-2xx and the gateway redelivers; re-applying the same event converges
// because every step tolerates a record that is already in the target state.
type Reconciler struct {
	facade    Facade
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

func WithPublisher(p EventPublisher) ReconcilerOption {
	return func(r *Reconciler) { r.publisher = p }
}

func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(facade Facade, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		facade:    facade,
		publisher: NopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle dispatches one normalized event. It must be called once per delivered webhook,
// after the delivery was written to the audit log.
func (r *Reconciler) Handle(ctx context.Context, event NormalizedEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	log := r.logger.With("kind", event.Kind, "provider", event.Provider)

	switch event.Kind {
	case EventPaymentSuccess:
		return r.handlePaymentSuccess(ctx, log, event)
	case EventPaymentFailed:
		return r.handleTerminalDenial(ctx, log, event, TransactionFailed, "payment_failed")
	case EventRefund:
		return r.handleTerminalDenial(ctx, log, event, TransactionRefunded, "refund")
	case EventChargeback:
		return r.handleTerminalDenial(ctx, log, event, TransactionChargeback, "chargeback")
	case EventPaymentPending:
		_, err := r.recordTransaction(ctx, log, event, TransactionPending)
		return err
	case EventRegistrationCreated, EventRegistrationUpdated:
		return r.handleRegistration(ctx, log, event)
	case EventScheduleCreated:
		return r.handleSchedule(ctx, log, event, ScheduleActive)
	case EventScheduleRescheduled:
		return r.handleSchedule(ctx, log, event, ScheduleRescheduled)
	case EventScheduleCanceled:
		return r.handleSchedule(ctx, log, event, ScheduleCanceled)
	case EventRiskFlagged, EventRiskCleared:
		// Observability only. Gating entitlements on risk scores would hook in here.
		log.Warn("risk signal received",
			"score", event.Risk.Score,
			"reason", event.Risk.Reason,
			"gateway_txn_id", event.Risk.GatewayTxnID,
		)
		return nil
	default:
		log.Info("unmapped webhook event ignored", "type", FirstString(event.Raw, "type", "eventType"))
		return nil
	}
}

func (r *Reconciler) handlePaymentSuccess(ctx context.Context, log *slog.Logger, event NormalizedEvent) error {
	rec, err := r.recordTransaction(ctx, log, event, TransactionSuccess)
	if err != nil || rec == nil {
		return err
	}
	if regID := event.Transaction.RegistrationID; regID != "" {
		tok := TokenRecord{ID: regID, UserID: rec.UserID, CreatedAt: r.now(), UpdatedAt: r.now()}
		if err := r.facade.SaveToken(ctx, tok); err != nil {
			return fmt.Errorf("save token %s: %w", regID, err)
		}
	}
	if err := r.facade.GrantAccess(ctx, grantFor(rec, "payment_success")); err != nil {
		return fmt.Errorf("grant access for %s: %w", rec.GatewayTxnID, err)
	}
	r.publish(ctx, event, rec.GatewayTxnID, contracts.PaymentEvent{
		GatewayTxnID:   rec.GatewayTxnID,
		RegistrationID: event.Transaction.RegistrationID,
		UserID:         rec.UserID,
		OrderID:        rec.OrderID,
		Status:         string(rec.Status),
		Amount:         rec.Amount.String(),
		Currency:       rec.Currency,
	})
	return nil
}

func (r *Reconciler) handleTerminalDenial(ctx context.Context, log *slog.Logger, event NormalizedEvent, status TransactionStatus, reason string) error {
	rec, err := r.recordTransaction(ctx, log, event, status)
	if err != nil || rec == nil {
		return err
	}
	if err := r.facade.DenyAccess(ctx, grantFor(rec, reason)); err != nil {
		return fmt.Errorf("deny access for %s: %w", rec.GatewayTxnID, err)
	}
	r.publish(ctx, event, rec.GatewayTxnID, contracts.PaymentEvent{
		GatewayTxnID: rec.GatewayTxnID,
		UserID:       rec.UserID,
		OrderID:      rec.OrderID,
		Status:       string(rec.Status),
		Amount:       rec.Amount.String(),
		Currency:     rec.Currency,
	})
	return nil
}

// recordTransaction persists the transaction in status. It returns a nil record (and no
// error) when the stored record is already further along, so callers skip side effects.
// A record already in status is returned without a write so side effects are re-applied.
func (r *Reconciler) recordTransaction(ctx context.Context, log *slog.Logger, event NormalizedEvent, status TransactionStatus) (*TransactionRecord, error) {
	te := event.Transaction
	txn := te.Transaction
	if txn.GatewayTxnID == "" {
		// every unkeyed event would collapse onto one record and grant its owner again
		log.Warn("transaction event without gateway transaction id", "user_id", te.UserID, "order_id", te.OrderID)
		return nil, ErrMissingTransactionID
	}
	now := r.now()

	existing, err := r.facade.GetTransaction(ctx, txn.GatewayTxnID)
	if err != nil && !errors.Is(err, ErrTransactionNotFound) {
		return nil, fmt.Errorf("load transaction %s: %w", txn.GatewayTxnID, err)
	}

	rec := TransactionRecord{
		GatewayTxnID: txn.GatewayTxnID,
		UserID:       te.UserID,
		OrderID:      te.OrderID,
		Amount:       txn.Amount,
		Currency:     txn.Currency,
		ResultCode:   txn.ResultCode,
		Status:       status,
		UIMessage:    UIMessageFor(txn),
		Raw:          event.Raw,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !txn.CreatedAt.IsZero() {
		rec.CreatedAt = txn.CreatedAt
	}

	if existing != nil {
		if existing.Status == status {
			log.Debug("transaction already in target status", "gateway_txn_id", txn.GatewayTxnID, "status", status)
			return existing, nil
		}
		if !CanTransitionTransaction(existing.Status, status) {
			log.Warn("ignoring out-of-order transaction update",
				"gateway_txn_id", txn.GatewayTxnID,
				"stored_status", existing.Status,
				"incoming_status", status,
			)
			return nil, nil
		}
		rec.CreatedAt = existing.CreatedAt
		if rec.UserID == "" {
			rec.UserID = existing.UserID
		}
		if rec.OrderID == "" {
			rec.OrderID = existing.OrderID
		}
	}

	if err := r.facade.SaveTransaction(ctx, rec); err != nil {
		return nil, fmt.Errorf("save transaction %s: %w", rec.GatewayTxnID, err)
	}
	log.Info("transaction recorded", "gateway_txn_id", rec.GatewayTxnID, "status", rec.Status, "result_code", rec.ResultCode)
	return &rec, nil
}

func (r *Reconciler) handleRegistration(ctx context.Context, log *slog.Logger, event NormalizedEvent) error {
	ref := event.Registration
	if ref.RegistrationID == "" {
		log.Warn("registration event without registration id")
		return nil
	}
	tok := TokenRecord{
		ID:        ref.RegistrationID,
		Brand:     ref.Brand,
		Last4:     ref.Last4,
		ExpiryMM:  ref.ExpiryMM,
		ExpiryYY:  ref.ExpiryYY,
		UserID:    ref.UserID,
		CreatedAt: r.now(),
		UpdatedAt: r.now(),
	}
	var err error
	if event.Kind == EventRegistrationCreated {
		err = r.facade.SaveToken(ctx, tok)
	} else {
		err = r.facade.UpdateToken(ctx, tok)
		if errors.Is(err, ErrTokenNotFound) {
			// the created event was lost or arrives later
			err = r.facade.SaveToken(ctx, tok)
		}
	}
	if err != nil {
		return fmt.Errorf("upsert token %s: %w", ref.RegistrationID, err)
	}
	log.Info("token upserted", "registration_id", ref.RegistrationID)
	r.publish(ctx, event, ref.RegistrationID, contracts.PaymentEvent{
		RegistrationID: ref.RegistrationID,
		UserID:         ref.UserID,
	})
	return nil
}

func (r *Reconciler) handleSchedule(ctx context.Context, log *slog.Logger, event NormalizedEvent, status ScheduleStatus) error {
	ref := event.Schedule
	scheduleID := ref.ScheduleID
	if scheduleID == "" {
		scheduleID = FallbackScheduleID(ref.RegistrationID, ref.Transaction.Amount.String(), ref.Transaction.Currency, ref.Interval)
		log.Warn("schedule event without schedule id, using generated id", "schedule_id", scheduleID)
	}
	now := r.now()
	rec := ScheduleRecord{
		ScheduleID:     scheduleID,
		RegistrationID: ref.RegistrationID,
		UserID:         ref.UserID,
		Status:         status,
		Amount:         ref.Transaction.Amount,
		Currency:       ref.Transaction.Currency,
		Interval:       ref.Interval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	existing, err := r.facade.GetSchedule(ctx, scheduleID)
	if err != nil && !errors.Is(err, ErrScheduleNotFound) {
		return fmt.Errorf("load schedule %s: %w", scheduleID, err)
	}
	if existing != nil {
		if existing.Status != status {
			if err := TransitionSchedule(existing.Status, status); err != nil {
				log.Warn("ignoring schedule event", "schedule_id", scheduleID, "error", err)
				return nil
			}
		}
		rec = mergeSchedule(*existing, rec)
	}

	if err := r.facade.UpsertSchedule(ctx, rec); err != nil {
		return fmt.Errorf("upsert schedule %s: %w", scheduleID, err)
	}
	log.Info("schedule upserted", "schedule_id", scheduleID, "status", status)
	r.publish(ctx, event, scheduleID, contracts.PaymentEvent{
		ScheduleID:     scheduleID,
		RegistrationID: rec.RegistrationID,
		UserID:         rec.UserID,
		Status:         string(rec.Status),
		Amount:         rec.Amount.String(),
		Currency:       rec.Currency,
	})
	return nil
}

// mergeSchedule keeps stored fields the incoming event did not carry.
func mergeSchedule(stored, incoming ScheduleRecord) ScheduleRecord {
	out := incoming
	out.CreatedAt = stored.CreatedAt
	if out.RegistrationID == "" {
		out.RegistrationID = stored.RegistrationID
	}
	if out.UserID == "" {
		out.UserID = stored.UserID
	}
	if out.Amount.IsZero() {
		out.Amount = stored.Amount
	}
	if out.Currency == "" {
		out.Currency = stored.Currency
	}
	if out.Interval == "" {
		out.Interval = stored.Interval
	}
	return out
}

// FallbackScheduleID derives a stable id for schedules the gateway reported without one,
// so a redelivery of the same event lands on the same record.
func FallbackScheduleID(parts ...string) string {
	seed := ""
	for _, p := range parts {
		seed += p + "|"
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func grantFor(rec *TransactionRecord, reason string) EntitlementGrant {
	return EntitlementGrant{
		UserID:       rec.UserID,
		OrderID:      rec.OrderID,
		GatewayTxnID: rec.GatewayTxnID,
		Reason:       reason,
	}
}

// publish is best effort. Records are already written; a lost event is recoverable from them.
func (r *Reconciler) publish(ctx context.Context, event NormalizedEvent, key string, msg contracts.PaymentEvent) {
	msg.EventKind = string(event.Kind)
	msg.Provider = event.Provider
	msg.OccurredAt = r.now()
	if err := r.publisher.Publish(ctx, key, msg); err != nil {
		r.logger.Warn("failed to publish payment event", "kind", event.Kind, "key", key, "error", err)
	}
}
