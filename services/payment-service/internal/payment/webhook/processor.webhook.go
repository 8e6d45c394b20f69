package webhook

import "github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"

// Delivery is one verified (or knowingly unverified) webhook, already classified.
type Delivery struct {
	Event          payment.NormalizedEvent
	Payload        map[string]any // decrypted JSON, kept for the audit log
	IdempotencyKey string         // empty when the provider sent no event id
	Verified       bool
}

type Processor interface {
	Provider() string
	VerifyAndParse( //it verifies the webhook signature and parses the event
		payload []byte, //raw webhook payload . it comes from HTTP request body
		headers map[string]string, //HTTP headers containing signature info
	) (*Delivery, error)
}
