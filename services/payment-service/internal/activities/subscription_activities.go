package activities

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.temporal.io/sdk/temporal"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// RefundInput is the compensation payload.
type RefundInput struct {
	GatewayTxnID string
	Amount       decimal.Decimal
	Currency     string
}

// Error types the workflow treats as final.
const (
	ErrTypeDeclined   = "PaymentDeclined"
	ErrTypePending    = "PaymentPending"
	ErrTypeValidation = "InvalidRequest"
	ErrTypeIllegal    = "IllegalScheduleTransition"
)

// SubscriptionActivities runs the upgrade steps of *payment.PaymentService inside Temporal.
type SubscriptionActivities struct {
	Service interface {
		ChargeProration(ctx context.Context, req payment.UpgradeRequest) (string, error)
		CancelSchedule(ctx context.Context, scheduleID string) error
		CreateSchedule(ctx context.Context, plan payment.RecurringPlan) (*payment.ScheduleRecord, error)
		RefundProration(ctx context.Context, gatewayTxnID string, amount decimal.Decimal, currency string) error
	} // Interface!
}

// Activity 1: the proration debit. The workflow runs it exactly once.
func (a *SubscriptionActivities) ACTIVITY_ChargeProration(ctx context.Context, req payment.UpgradeRequest) (string, error) {
	txnID, err := a.Service.ChargeProration(ctx, req)
	if errors.Is(err, payment.ErrChargePending) {
		// a failed activity drops its result, so the id rides along as details
		return "", temporal.NewNonRetryableApplicationError(err.Error(), ErrTypePending, err, txnID)
	}
	return txnID, classify(err)
}

// Activity 2: stop the old schedule. Idempotent, so retries are safe.
func (a *SubscriptionActivities) ACTIVITY_CancelSchedule(ctx context.Context, scheduleID string) error {
	return classify(a.Service.CancelSchedule(ctx, scheduleID))
}

// Activity 3: start the new schedule.
func (a *SubscriptionActivities) ACTIVITY_CreateSchedule(ctx context.Context, plan payment.RecurringPlan) (payment.ScheduleRecord, error) {
	rec, err := a.Service.CreateSchedule(ctx, plan)
	if err != nil {
		return payment.ScheduleRecord{}, classify(err)
	}
	return *rec, nil
}

// Compensation: give the proration back.
func (a *SubscriptionActivities) ACTIVITY_RefundProration(ctx context.Context, in RefundInput) error {
	return classify(a.Service.RefundProration(ctx, in.GatewayTxnID, in.Amount, in.Currency))
}

// classify marks errors that no retry can fix.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrPaymentDeclined):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeDeclined, err)
	case payment.IsValidationError(err):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeValidation, err)
	case errors.Is(err, payment.ErrIllegalScheduleTransition):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeIllegal, err)
	}
	return err
}
