// services/payment-service/internal/payment/session.payment.go
package payment

import "time"

// IsSessionValid reports whether a checkout session can still be reused:
// it is pending and strictly younger than ttl.
func IsSessionValid(s CheckoutSession, ttl time.Duration, now time.Time) bool {
	return s.Status == SessionPending && now.Sub(s.CreatedAt) < ttl
}

// SessionTTL converts the configured minutes into a duration.
func SessionTTL(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}
