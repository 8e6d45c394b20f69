package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/activities"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// Register wires the upgrade workflow and its activities into a Temporal worker.
func Register(w worker.Registry, acts *activities.SubscriptionActivities) {
	// Pass the function, not a call.
	w.RegisterWorkflow(UpgradeSubscriptionWorkflow)
	w.RegisterActivity(acts)
}

// Starter runs upgrades through Temporal and waits for the result. It has the same shape as
// PaymentService.UpgradeSubscription so the HTTP layer can use either.
type Starter struct {
	client    client.Client
	taskQueue string
}

func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

func (s *Starter) UpgradeSubscription(ctx context.Context, req payment.UpgradeRequest) (*payment.UpgradeResult, error) {
	// validation errors keep their sentinel this way
	if err := payment.ValidateUpgrade(req); err != nil {
		return nil, &payment.UpgradeError{Step: payment.StepValidate, Err: err}
	}
	opts := client.StartWorkflowOptions{
		// one upgrade per schedule at a time
		ID:        "subscription-upgrade-" + req.ScheduleID,
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, UpgradeSubscriptionWorkflow, req)
	if err != nil {
		return nil, err
	}
	var out UpgradeOutcome
	if err := run.Get(ctx, &out); err != nil {
		return nil, asUpgradeError(err)
	}
	sched := out.Schedule
	return &payment.UpgradeResult{ProrationTxnID: out.ProrationTxnID, Schedule: &sched}, nil
}

func asUpgradeError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || appErr.Type() != ErrTypeUpgradeFailed {
		return err
	}
	var f UpgradeFailure
	if appErr.HasDetails() {
		if derr := appErr.Details(&f); derr != nil {
			return err
		}
	}
	return &payment.UpgradeError{
		Step:         f.Step,
		Charged:      f.Charged && !f.Refunded,
		ProrationTxn: f.ProrationTxn,
		Err:          err,
	}
}
