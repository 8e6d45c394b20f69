// services/payment-service/internal/store/postgres/audit_store.postgres.go
package postgres

import (
	"context"
	"fmt"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// SaveWebhook appends to the audit log. Redeliveries get their own row.
func (s *Store) SaveWebhook(ctx context.Context, rec payment.WebhookRecord) error {
	payload, err := marshalJSON(rec.Payload)
	if err != nil {
		return fmt.Errorf("db: failed to encode webhook payload: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO webhook_audit (id, provider, kind, payload, verified, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Provider, rec.Kind, payload, rec.Verified, rec.IdempotencyKey, orNow(rec.CreatedAt, s.now))
	if err != nil {
		return fmt.Errorf("db: failed to save webhook audit record: %w", err)
	}
	return nil
}

func (s *Store) SaveVerification(ctx context.Context, rec payment.VerificationRecord) error {
	raw, err := marshalJSON(rec.Raw)
	if err != nil {
		return fmt.Errorf("db: failed to encode verification payload: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx, `
		INSERT INTO payment_verifications (id, checkout_id, result_code, status, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.CheckoutID, rec.ResultCode, rec.Status, raw, orNow(rec.CreatedAt, s.now))
	if err != nil {
		return fmt.Errorf("db: failed to save verification: %w", err)
	}
	return nil
}

// GrantAccess and DenyAccess record the decision. Delivery to access control is done by
// internal/entitlement when RabbitMQ is configured.
func (s *Store) GrantAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	return s.recordEntitlement(ctx, "grant", grant)
}

func (s *Store) DenyAccess(ctx context.Context, grant payment.EntitlementGrant) error {
	return s.recordEntitlement(ctx, "deny", grant)
}

func (s *Store) recordEntitlement(ctx context.Context, action string, g payment.EntitlementGrant) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO entitlement_events (action, user_id, order_id, gateway_txn_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, action, g.UserID, g.OrderID, g.GatewayTxnID, g.Reason, s.now())
	if err != nil {
		return fmt.Errorf("db: failed to record entitlement %s: %w", action, err)
	}
	return nil
}
