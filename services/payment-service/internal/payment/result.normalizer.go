//services/payment-service/internal/payment/result.normalizer.go

package payment

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// approvedPrefix is the gateway convention for fully successful transactions.
const approvedPrefix = "000."

var pendingPattern = regexp.MustCompile(`(?i)pending`)

// Field precedence for the loosely-typed gateway bodies. First non-empty wins.
var (
	txnIDFields       = []string{"id", "paymentId", "transactionId", "ndc"}
	resultCodeFields  = []string{"result.code", "resultCode", "code"}
	descriptionFields = []string{"result.description", "resultDescription", "description"}
	createdAtFields   = []string{"timestamp", "createdAt", "created"}
)

// NormalizedResult is the outcome of a gateway response, used by both the webhook path and
// the synchronous API paths.
type NormalizedResult struct {
	NormalizedTransaction
	UIMessage string
}

// Normalize extracts the transaction view from a gateway response body.
func Normalize(body map[string]any, defaultCurrency string) NormalizedResult {
	txn := NormalizeTransaction(body, defaultCurrency)
	return NormalizedResult{
		NormalizedTransaction: txn,
		UIMessage:             UIMessageFor(txn),
	}
}

// NormalizeTransaction builds a NormalizedTransaction from any gateway transaction object.
// A nil body gives the zero transaction (declined, amount 0, default currency).
func NormalizeTransaction(body map[string]any, defaultCurrency string) NormalizedTransaction {
	code := FirstString(body, resultCodeFields...)
	desc := FirstString(body, descriptionFields...)
	approved := IsApprovedCode(code)

	currency := strings.ToUpper(FirstString(body, "currency"))
	if currency == "" {
		currency = strings.ToUpper(defaultCurrency)
	}

	return NormalizedTransaction{
		GatewayTxnID: FirstString(body, txnIDFields...),
		Amount:       ToDecimal(Lookup(body, "amount")),
		Currency:     currency,
		ResultCode:   code,
		Description:  desc,
		Approved:     approved,
		Pending:      !approved && pendingPattern.MatchString(desc),
		CreatedAt:    toTime(FirstString(body, createdAtFields...)),
	}
}

// IsApprovedCode reports whether a result code denotes full success.
func IsApprovedCode(code string) bool {
	return strings.HasPrefix(code, approvedPrefix)
}

// UIMessage pairs a result code with the text shown to the payer.
type UIMessage struct {
	Code    string
	Message string
}

type messageRule struct {
	prefix  string
	message string
}

const (
	genericFailureMessage = "The payment could not be completed. Please try again or use another card."
	approvedMessage       = "Payment approved."
	pendingMessage        = "The payment is being processed. You will be notified once it completes."
	reviewMessage         = "The payment was received and is pending manual review."
)

// uiMessageRules is checked top to bottom, first match wins. A longer prefix must come before
// any shorter prefix it extends; validateMessageRules enforces that at init.
var uiMessageRules = []messageRule{
	{"100.396.", "3-D Secure authentication failed. Please retry and complete the verification step."},
	{"100.390.", "3-D Secure authentication was rejected by the card issuer."},
	{"200.300.", "The card issuer declined the transaction. Please contact your bank or use another card."},
	{"800.400.", "The card data is invalid. Please check the card number, expiry date and CVV."},
	{"800.100.", "The transaction was declined by the bank."},
	{"000.200.", reviewMessage},
	{"000.", approvedMessage},
	{"700.", "The payment session expired or timed out. Please start again."},
	{"900.", "The payment provider is temporarily unavailable. Please try again later."},
}

func init() {
	if err := validateMessageRules(uiMessageRules); err != nil {
		panic(err)
	}
}

// validateMessageRules rejects tables where an earlier rule shadows a later one.
func validateMessageRules(rules []messageRule) error {
	for i, earlier := range rules {
		for _, later := range rules[i+1:] {
			if strings.HasPrefix(later.prefix, earlier.prefix) {
				return fmt.Errorf("ui message rule %q shadows %q", earlier.prefix, later.prefix)
			}
		}
	}
	return nil
}

// UIMessageFor picks the payer message for a normalized transaction. Approved and pending
// state win over the code, since other providers use their own code vocabulary.
func UIMessageFor(txn NormalizedTransaction) string {
	switch {
	case txn.Approved:
		return approvedMessage
	case txn.Pending:
		return pendingMessage
	}
	return MapResultCodeToUIMessage(txn.ResultCode).Message
}

// MapResultCodeToUIMessage is total: any input, including garbage, yields a non-empty message.
func MapResultCodeToUIMessage(code string) UIMessage {
	for _, rule := range uiMessageRules {
		if strings.HasPrefix(code, rule.prefix) {
			return UIMessage{Code: code, Message: rule.message}
		}
	}
	return UIMessage{Code: code, Message: genericFailureMessage}
}

// Lookup walks a dotted path ("result.code") through nested JSON objects.
func Lookup(body map[string]any, path string) any {
	var cur any = body
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// FirstString returns the first path that resolves to a non-empty scalar, as a string.
func FirstString(body map[string]any, paths ...string) string {
	for _, p := range paths {
		v := Lookup(body, p)
		if v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		if s := strings.TrimSpace(cast.ToString(v)); s != "" {
			return s
		}
	}
	return ""
}

// ToDecimal coerces a JSON number or numeric string into a decimal, defaulting to zero.
func ToDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(n)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func toTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	// gateway timestamps look like "2024-05-01 10:22:01+0000"
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05-0700", "2006-01-02 15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
