package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/activities"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

const (
	ActivityChargeProration = "ACTIVITY_ChargeProration"
	ActivityCancelSchedule  = "ACTIVITY_CancelSchedule"
	ActivityCreateSchedule  = "ACTIVITY_CreateSchedule"
	ActivityRefundProration = "ACTIVITY_RefundProration"

	ErrTypeUpgradeFailed = "UpgradeFailed"
)

// UpgradeOutcome is the workflow result.
type UpgradeOutcome struct {
	ProrationTxnID string
	Schedule       payment.ScheduleRecord
}

// UpgradeFailure is attached as details to an UpgradeFailed application error.
type UpgradeFailure struct {
	Step         payment.UpgradeStep
	Charged      bool
	Refunded     bool
	ProrationTxn string
}

// UpgradeSubscriptionWorkflow is the durable version of PaymentService.UpgradeSubscription:
// charge -> cancel -> create, refunding the proration when a later step fails.
func UpgradeSubscriptionWorkflow(ctx workflow.Context, req payment.UpgradeRequest) (UpgradeOutcome, error) {
	logger := workflow.GetLogger(ctx)

	if err := payment.ValidateUpgrade(req); err != nil {
		return UpgradeOutcome{}, failure(UpgradeFailure{Step: payment.StepValidate}, err)
	}

	// A debit must never be retried blindly: a timeout does not mean the money did not move.
	chargeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 45 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	//If the gateway or db is down retry for a while then give up
	stepCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	})

	var out UpgradeOutcome
	//Step 1: proration charge
	if err := workflow.ExecuteActivity(chargeCtx, ActivityChargeProration, req).Get(ctx, &out.ProrationTxnID); err != nil {
		f := UpgradeFailure{Step: payment.StepProrate}
		if txnID := pendingTxn(err); txnID != "" {
			// nothing to refund yet; the settlement arrives by webhook
			logger.Warn("proration pending, subscription left on the old plan", "proration_txn", txnID)
			f.Charged, f.ProrationTxn = true, txnID
		}
		return UpgradeOutcome{}, failure(f, err)
	}
	charged := out.ProrationTxnID != ""

	compensate := func(step payment.UpgradeStep, cause error) error {
		f := UpgradeFailure{Step: step, Charged: charged, ProrationTxn: out.ProrationTxnID}
		if charged {
			currency := req.Currency
			if currency == "" {
				currency = req.NewRecurring.Currency
			}
			in := activities.RefundInput{GatewayTxnID: out.ProrationTxnID, Amount: req.ProrationAmount, Currency: currency}
			if err := workflow.ExecuteActivity(stepCtx, ActivityRefundProration, in).Get(ctx, nil); err != nil {
				logger.Error("proration refund failed, manual action needed", "proration_txn", out.ProrationTxnID, "error", err)
			} else {
				f.Refunded = true
			}
		}
		return failure(f, cause)
	}

	//Step 2: cancel the old schedule
	if err := workflow.ExecuteActivity(stepCtx, ActivityCancelSchedule, req.ScheduleID).Get(ctx, nil); err != nil {
		return out, compensate(payment.StepCancel, err)
	}

	//Step 3: create the new schedule
	if err := workflow.ExecuteActivity(stepCtx, ActivityCreateSchedule, req.NewRecurring).Get(ctx, &out.Schedule); err != nil {
		logger.Error("old schedule canceled but new one not created", "schedule_id", req.ScheduleID, "error", err)
		return out, compensate(payment.StepCreate, err)
	}

	logger.Info("subscription upgraded", "old_schedule_id", req.ScheduleID, "new_schedule_id", out.Schedule.ScheduleID)
	return out, nil
}

// pendingTxn returns the transaction id carried by a PaymentPending activity error.
func pendingTxn(err error) string {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != activities.ErrTypePending || !appErr.HasDetails() {
		return ""
	}
	var txnID string
	if appErr.Details(&txnID) != nil {
		return ""
	}
	return txnID
}

func failure(f UpgradeFailure, cause error) error {
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("upgrade failed at %s: %v", f.Step, cause), ErrTypeUpgradeFailed, cause, f)
}
