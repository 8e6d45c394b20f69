//services/payment-service/internal/payment/errors.go

package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent protects the NormalizedEvent union invariant.
	ErrMalformedEvent   = errors.New("normalized event does not match its kind")
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrIllegalScheduleTransition is returned when a schedule status change is not in the table.
	ErrIllegalScheduleTransition = errors.New("illegal schedule status transition")

	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrTokenNotFound       = errors.New("token not found")

	// ErrMissingTransactionID rejects transaction events that cannot be keyed.
	ErrMissingTransactionID = errors.New("transaction event has no gateway transaction id")

	// Validation errors. The HTTP layer maps these to 422.
	ErrMissingRegistrationID = errors.New("registration id is required")
	ErrInvalidAmount         = errors.New("invalid payment amount")
	ErrMissingCurrency       = errors.New("currency is required")
	ErrMissingScheduleID     = errors.New("schedule id is required")
	ErrMissingCheckoutID     = errors.New("checkout id is required")
	ErrMissingCard           = errors.New("card details are required")

	// ErrPaymentDeclined wraps a non-approved synchronous charge.
	ErrPaymentDeclined = errors.New("payment gateway declined the transaction")
	// ErrChargePending is returned with the transaction id when money may still move.
	ErrChargePending = errors.New("payment is pending at the gateway")
	// ErrProviderDown is returned by gateways when the remote API is unavailable.
	ErrProviderDown = errors.New("payment provider is currently unavailable")
)

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingRegistrationID, ErrInvalidAmount, ErrMissingCurrency,
		ErrMissingScheduleID, ErrMissingCheckoutID, ErrMissingCard,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UpgradeStep names the step of an upgrade that failed.
type UpgradeStep string

const (
	StepValidate UpgradeStep = "validate"
	StepProrate  UpgradeStep = "proration_charge"
	StepCancel   UpgradeStep = "cancel_old_schedule"
	StepCreate   UpgradeStep = "create_new_schedule"
)

// UpgradeError reports which step of UpgradeSubscription failed. When Charged is true the
// proration debit went through and the subscription was not migrated.
type UpgradeError struct {
	Step         UpgradeStep
	Charged      bool
	ProrationTxn string
	Err          error
}

func (e *UpgradeError) Error() string {
	if e.Charged {
		return fmt.Sprintf("upgrade failed at %s after proration charge %s: %v", e.Step, e.ProrationTxn, e.Err)
	}
	return fmt.Sprintf("upgrade failed at %s: %v", e.Step, e.Err)
}

func (e *UpgradeError) Unwrap() error { return e.Err }
