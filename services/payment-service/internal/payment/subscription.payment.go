// services/payment-service/internal/payment/subscription.payment.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The gateway knows only "create" and "cancel" for schedules. Pause is cancel plus a stored
// resume instruction; resume is a brand new schedule built from the token.

func validatePlan(plan RecurringPlan) error {
	if plan.RegistrationID == "" {
		return ErrMissingRegistrationID
	}
	if !plan.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if plan.Currency == "" {
		return ErrMissingCurrency
	}
	return nil
}

// CreateSubscription creates a remote schedule charging plan against its stored token.
func (ps *PaymentService) CreateSubscription(ctx context.Context, plan RecurringPlan) (*ScheduleRecord, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.CreateSchedule(callCtx, plan)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	if code := FirstString(body, resultCodeFields...); code != "" && !IsApprovedCode(code) {
		return nil, fmt.Errorf("create schedule: %w: %s", ErrPaymentDeclined, code)
	}

	scheduleID := FirstString(body, "id", "scheduleId")
	if scheduleID == "" {
		scheduleID = FallbackScheduleID(plan.RegistrationID, plan.Amount.String(), plan.Currency, plan.Interval)
		ps.logger.Warn("gateway returned no schedule id, using generated id", "schedule_id", scheduleID)
	}
	now := ps.now()
	rec := ScheduleRecord{
		ScheduleID:     scheduleID,
		RegistrationID: plan.RegistrationID,
		UserID:         plan.UserID,
		Status:         ScheduleActive,
		Amount:         plan.Amount,
		Currency:       plan.Currency,
		Interval:       plan.Interval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := ps.facade.UpsertSchedule(ctx, rec); err != nil {
		return nil, fmt.Errorf("upsert schedule %s: %w", scheduleID, err)
	}
	ps.logger.Info("schedule created", "schedule_id", scheduleID, "registration_id", plan.RegistrationID)
	return &rec, nil
}

// CancelSubscription cancels the remote schedule immediately. Cancellation is irreversible.
func (ps *PaymentService) CancelSubscription(ctx context.Context, scheduleID string) (*ScheduleRecord, error) {
	return ps.stopSchedule(ctx, scheduleID, ScheduleCanceled)
}

// PauseSubscription cancels the remote schedule and stores an instruction to resume it at
// resumeAt with the same plan.
func (ps *PaymentService) PauseSubscription(ctx context.Context, scheduleID string, resumeAt time.Time) (*ScheduleRecord, error) {
	rec, err := ps.stopSchedule(ctx, scheduleID, SchedulePaused)
	if err != nil {
		return nil, err
	}
	ins := SubscriptionInstruction{
		ID:         uuid.NewString(),
		Kind:       InstructionResume,
		ScheduleID: rec.ScheduleID,
		Recurring: RecurringPlan{
			RegistrationID: rec.RegistrationID,
			UserID:         rec.UserID,
			Amount:         rec.Amount,
			Currency:       rec.Currency,
			Interval:       rec.Interval,
		},
		EffectiveAt: resumeAt,
		CreatedAt:   ps.now(),
	}
	if err := ps.facade.SaveInstruction(ctx, ins); err != nil {
		// remote schedule is already gone; the caller has to retry the instruction
		return rec, fmt.Errorf("save resume instruction for %s: %w", rec.ScheduleID, err)
	}
	return rec, nil
}

// ResumeSubscription creates a new schedule from the token. From the gateway's point of view
// it is the same as CreateSubscription.
func (ps *PaymentService) ResumeSubscription(ctx context.Context, plan RecurringPlan) (*ScheduleRecord, error) {
	return ps.CreateSubscription(ctx, plan)
}

func (ps *PaymentService) stopSchedule(ctx context.Context, scheduleID string, to ScheduleStatus) (*ScheduleRecord, error) {
	if scheduleID == "" {
		return nil, ErrMissingScheduleID
	}
	rec, err := ps.facade.GetSchedule(ctx, scheduleID)
	switch {
	case errors.Is(err, ErrScheduleNotFound):
		if to == SchedulePaused {
			// nothing to resume from
			return nil, err
		}
		rec = &ScheduleRecord{ScheduleID: scheduleID, Status: ScheduleActive, CreatedAt: ps.now()}
	case err != nil:
		return nil, fmt.Errorf("load schedule %s: %w", scheduleID, err)
	}
	if err := TransitionSchedule(rec.Status, to); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	if err := ps.gateway.CancelSchedule(callCtx, scheduleID); err != nil {
		return nil, fmt.Errorf("cancel schedule %s: %w", scheduleID, err)
	}

	rec.Status = to
	rec.UpdatedAt = ps.now()
	if err := ps.facade.UpsertSchedule(ctx, *rec); err != nil {
		return nil, fmt.Errorf("upsert schedule %s: %w", scheduleID, err)
	}
	ps.logger.Info("schedule stopped", "schedule_id", scheduleID, "status", to)
	return rec, nil
}

// UpgradeRequest moves a subscription to a more expensive plan, charging ProrationAmount now.
type UpgradeRequest struct {
	ScheduleID      string
	ProrationAmount decimal.Decimal
	Currency        string
	OrderID         string
	NewRecurring    RecurringPlan
}

type UpgradeResult struct {
	ProrationTxnID string
	Schedule       *ScheduleRecord
}

// ValidateUpgrade checks the request without touching the network.
func ValidateUpgrade(req UpgradeRequest) error {
	if req.NewRecurring.RegistrationID == "" {
		return ErrMissingRegistrationID
	}
	if req.ScheduleID == "" {
		return ErrMissingScheduleID
	}
	if req.ProrationAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return validatePlan(req.NewRecurring)
}

// UpgradeSubscription runs proration charge, cancel and create in order. There is no
// compensation here: a failure after the charge returns an *UpgradeError with Charged set and
// the subscription left on the old plan. The durable workflow in internal/workflow refunds.
func (ps *PaymentService) UpgradeSubscription(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error) {
	if err := ValidateUpgrade(req); err != nil {
		return nil, &UpgradeError{Step: StepValidate, Err: err}
	}

	out := &UpgradeResult{}
	txnID, err := ps.ChargeProration(ctx, req)
	out.ProrationTxnID = txnID
	charged := txnID != ""
	if err != nil {
		if charged {
			ps.logger.Warn("proration pending, subscription left on the old plan",
				"schedule_id", req.ScheduleID, "proration_txn", txnID)
			return out, &UpgradeError{Step: StepProrate, Charged: true, ProrationTxn: txnID, Err: err}
		}
		return nil, &UpgradeError{Step: StepProrate, Err: err}
	}

	if err := ps.CancelSchedule(ctx, req.ScheduleID); err != nil {
		ps.logger.Error("upgrade left subscription charged but not migrated",
			"schedule_id", req.ScheduleID, "proration_txn", txnID, "error", err)
		return out, &UpgradeError{Step: StepCancel, Charged: charged, ProrationTxn: txnID, Err: err}
	}
	sched, err := ps.CreateSchedule(ctx, req.NewRecurring)
	if err != nil {
		ps.logger.Error("upgrade canceled old schedule but failed to create the new one",
			"schedule_id", req.ScheduleID, "proration_txn", txnID, "error", err)
		return out, &UpgradeError{Step: StepCreate, Charged: charged, ProrationTxn: txnID, Err: err}
	}
	out.Schedule = sched
	return out, nil
}

// ChargeProration debits the proration amount against the new plan's token. It returns an
// empty id when there is nothing to charge. A pending debit returns its id with
// ErrChargePending.
func (ps *PaymentService) ChargeProration(ctx context.Context, req UpgradeRequest) (string, error) {
	if req.ProrationAmount.IsZero() {
		return "", nil
	}
	currency := req.Currency
	if currency == "" {
		currency = req.NewRecurring.Currency
	}
	res, err := ps.ChargeToken(ctx, TokenChargeRequest{
		RegistrationID: req.NewRecurring.RegistrationID,
		UserID:         req.NewRecurring.UserID,
		OrderID:        req.OrderID,
		Amount:         req.ProrationAmount,
		Currency:       currency,
	})
	if err != nil {
		return "", err
	}
	switch res.Status {
	case TransactionSuccess:
	case TransactionPending:
		// not good enough to migrate the plan, but the payer may still be debited
		id := res.Transaction.GatewayTxnID
		return id, fmt.Errorf("%w: proration %s", ErrChargePending, id)
	default:
		return "", fmt.Errorf("%w: proration %s is %s", ErrPaymentDeclined, res.Transaction.GatewayTxnID, res.Status)
	}
	return res.Transaction.GatewayTxnID, nil
}

// CancelSchedule is the cancel step of an upgrade. An already canceled schedule is fine.
func (ps *PaymentService) CancelSchedule(ctx context.Context, scheduleID string) error {
	rec, err := ps.facade.GetSchedule(ctx, scheduleID)
	if err == nil && rec.Status == ScheduleCanceled {
		return nil
	}
	_, err = ps.CancelSubscription(ctx, scheduleID)
	return err
}

// CreateSchedule is the create step of an upgrade.
func (ps *PaymentService) CreateSchedule(ctx context.Context, plan RecurringPlan) (*ScheduleRecord, error) {
	return ps.CreateSubscription(ctx, plan)
}

// RefundProration reverses a proration charge and records the refund.
func (ps *PaymentService) RefundProration(ctx context.Context, gatewayTxnID string, amount decimal.Decimal, currency string) error {
	if gatewayTxnID == "" {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.Refund(callCtx, gatewayTxnID, amount, ps.currency(currency))
	if err != nil {
		return fmt.Errorf("refund %s: %w", gatewayTxnID, err)
	}
	res := Normalize(body, ps.defaultCurrency)
	if !res.Approved {
		return fmt.Errorf("refund %s: %w: %s", gatewayTxnID, ErrPaymentDeclined, res.ResultCode)
	}
	// the refund is recorded against the original charge
	txn := res.NormalizedTransaction
	txn.GatewayTxnID = gatewayTxnID
	return ps.reconciler.Handle(ctx, NormalizedEvent{
		Kind:        EventRefund,
		Provider:    syncProvider,
		Transaction: &TransactionEvent{Transaction: txn},
		Raw:         body,
		ReceivedAt:  ps.now(),
	})
}

// DowngradeRequest asks for a cheaper plan starting at EffectiveAt.
type DowngradeRequest struct {
	ScheduleID   string
	NewRecurring RecurringPlan
	EffectiveAt  time.Time
}

// DowngradeSubscription only stores an instruction. No gateway call is made; a scheduler
// outside this service applies it at EffectiveAt.
func (ps *PaymentService) DowngradeSubscription(ctx context.Context, req DowngradeRequest) (*SubscriptionInstruction, error) {
	if req.ScheduleID == "" {
		return nil, ErrMissingScheduleID
	}
	if err := validatePlan(req.NewRecurring); err != nil {
		return nil, err
	}
	ins := SubscriptionInstruction{
		ID:          uuid.NewString(),
		Kind:        InstructionDowngrade,
		ScheduleID:  req.ScheduleID,
		Recurring:   req.NewRecurring,
		EffectiveAt: req.EffectiveAt,
		CreatedAt:   ps.now(),
	}
	if err := ps.facade.SaveInstruction(ctx, ins); err != nil {
		return nil, fmt.Errorf("save downgrade instruction: %w", err)
	}
	return &ins, nil
}
