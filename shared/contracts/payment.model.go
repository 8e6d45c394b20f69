// shared/contracts/payment.model.go
package contracts

import "time"

// PaymentEvent is published on the payments topic after the payment service applied a
// normalized gateway outcome. Consumers must treat it as at-least-once.
type PaymentEvent struct {
	EventKind      string    `json:"event_kind"`
	Provider       string    `json:"provider"`
	GatewayTxnID   string    `json:"gateway_txn_id,omitempty"`
	ScheduleID     string    `json:"schedule_id,omitempty"`
	RegistrationID string    `json:"registration_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	OrderID        string    `json:"order_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	Amount         string    `json:"amount,omitempty"` // decimal string, never float
	Currency       string    `json:"currency,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// WebhookEnvelope is a raw gateway delivery as it arrived on the HTTP boundary. It is the
// message format of the webhook replay topic.
type WebhookEnvelope struct {
	Provider   string            `json:"provider"`
	Body       []byte            `json:"body"`
	Headers    map[string]string `json:"headers"`
	ReceivedAt time.Time         `json:"received_at"`
}

// EntitlementAction is what downstream access control must do.
type EntitlementAction string

const (
	EntitlementGrant EntitlementAction = "grant"
	EntitlementDeny  EntitlementAction = "deny"
)

// EntitlementJob is the body of a message on the entitlement queue.
type EntitlementJob struct {
	Action       EntitlementAction `json:"action"`
	UserID       string            `json:"user_id"`
	OrderID      string            `json:"order_id,omitempty"`
	GatewayTxnID string            `json:"gateway_txn_id,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	IssuedAt     time.Time         `json:"issued_at"`
}
