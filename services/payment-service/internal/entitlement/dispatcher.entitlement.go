// services/payment-service/internal/entitlement/dispatcher.entitlement.go
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/shared/contracts"
)

// JobPublisher is satisfied by shared/rabbitmq.RabbitmqClient.
type JobPublisher interface {
	PublishJSON(ctx context.Context, queueName string, v any) error
}

// Dispatcher decorates a payment.Facade: entitlement decisions are stored by the wrapped
// facade first, then handed to access control as jobs on a durable queue.
type Dispatcher struct {
	payment.Facade
	publisher JobPublisher
	queue     string
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(inner payment.Facade, publisher JobPublisher, queue string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{Facade: inner, publisher: publisher, queue: queue, logger: logger, now: time.Now}
}

func (d *Dispatcher) GrantAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	if err := d.Facade.GrantAccess(ctx, grant); err != nil {
		return err
	}
	return d.dispatch(ctx, contracts.EntitlementGrant, grant)
}

func (d *Dispatcher) DenyAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	if err := d.Facade.DenyAccess(ctx, grant); err != nil {
		return err
	}
	return d.dispatch(ctx, contracts.EntitlementDeny, grant)
}

// dispatch errors propagate so the webhook is redelivered; grants are idempotent downstream.
func (d *Dispatcher) dispatch(ctx context.Context, action contracts.EntitlementAction, g payment.EntitlementGrant) error {
	job := contracts.EntitlementJob{
		Action:       action,
		UserID:       g.UserID,
		OrderID:      g.OrderID,
		GatewayTxnID: g.GatewayTxnID,
		Reason:       g.Reason,
		IssuedAt:     d.now().UTC(),
	}
	if err := d.publisher.PublishJSON(ctx, d.queue, job); err != nil {
		d.logger.Error("entitlement job not queued", "action", action, "gateway_txn_id", g.GatewayTxnID, "error", err)
		return fmt.Errorf("entitlement: queue %s job: %w", action, err)
	}
	return nil
}
