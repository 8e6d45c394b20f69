package cardgate

import (
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
)

const ProviderName = "cardgate"

// Processor handles the card gateway's encrypted notifications.
type Processor struct {
	verifier        *Verifier
	defaultCurrency string
	now             func() time.Time
}

var _ webhook.Processor = (*Processor)(nil)

func New(verifier *Verifier, defaultCurrency string) *Processor {
	return &Processor{verifier: verifier, defaultCurrency: defaultCurrency, now: time.Now}
}

func (p *Processor) Provider() string {
	return ProviderName
}

func (p *Processor) VerifyAndParse(payload []byte, headers map[string]string) (*webhook.Delivery, error) {
	opened, err := p.verifier.DecryptAndVerify(payload, headers)
	if err != nil {
		return nil, err
	}
	ev := Classify(opened.Payload, p.defaultCurrency)
	ev.Provider = ProviderName
	ev.ReceivedAt = p.now()
	return &webhook.Delivery{
		Event:          ev,
		Payload:        opened.Payload,
		IdempotencyKey: opened.IdempotencyKey,
		Verified:       opened.Verified,
	}, nil
}
