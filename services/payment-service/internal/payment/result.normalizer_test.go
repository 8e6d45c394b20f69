//services/payment-service/internal/payment/result.normalizer_test.go

package payment

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalize_ApprovedAndPending(t *testing.T) {
	tests := []struct {
		name         string
		body         map[string]any
		wantApproved bool
		wantPending  bool
		wantStatus   TransactionStatus
	}{
		{
			name:         "000. prefix is approved",
			body:         map[string]any{"id": "T-1", "result": map[string]any{"code": "000.100.110", "description": "Request successfully processed"}},
			wantApproved: true,
			wantStatus:   TransactionSuccess,
		},
		{
			name:         "approved wins even when description says pending",
			body:         map[string]any{"result": map[string]any{"code": "000.200.000", "description": "transaction pending"}},
			wantApproved: true,
			wantStatus:   TransactionSuccess,
		},
		{
			name:        "pending description without approved code",
			body:        map[string]any{"result": map[string]any{"code": "800.400.500", "description": "Waiting for confirmation - PENDING"}},
			wantPending: true,
			wantStatus:  TransactionPending,
		},
		{
			name:       "declined",
			body:       map[string]any{"resultCode": "800.100.151", "resultDescription": "invalid card"},
			wantStatus: TransactionFailed,
		},
		{
			name:       "empty body is declined",
			body:       nil,
			wantStatus: TransactionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize(tt.body, "USD")
			if res.Approved != tt.wantApproved {
				t.Errorf("approved = %v, want %v", res.Approved, tt.wantApproved)
			}
			if res.Pending != tt.wantPending {
				t.Errorf("pending = %v, want %v", res.Pending, tt.wantPending)
			}
			if res.Approved && res.Pending {
				t.Fatalf("approved and pending must be exclusive")
			}
			if got := res.Status(); got != tt.wantStatus {
				t.Errorf("status = %s, want %s", got, tt.wantStatus)
			}
			if res.UIMessage == "" {
				t.Errorf("ui message must not be empty")
			}
		})
	}
}

func TestNormalize_FieldExtraction(t *testing.T) {
	body := map[string]any{
		"paymentId": "P-9",
		"amount":    "10.50",
		"result":    map[string]any{"code": "000.000.000"},
		"timestamp": "2024-05-01 10:22:01+0000",
	}
	res := Normalize(body, "eur")
	if res.GatewayTxnID != "P-9" {
		t.Errorf("txn id = %q, want P-9", res.GatewayTxnID)
	}
	if !res.Amount.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("amount = %s, want 10.5", res.Amount)
	}
	if res.Currency != "EUR" {
		t.Errorf("currency = %q, want default EUR", res.Currency)
	}
	if res.CreatedAt.IsZero() {
		t.Errorf("timestamp not parsed")
	}

	numeric := Normalize(map[string]any{"amount": 12.25, "currency": "gbp"}, "USD")
	if !numeric.Amount.Equal(decimal.RequireFromString("12.25")) {
		t.Errorf("numeric amount = %s", numeric.Amount)
	}
	if numeric.Currency != "GBP" {
		t.Errorf("currency = %q", numeric.Currency)
	}

	garbage := Normalize(map[string]any{"amount": "ten"}, "USD")
	if !garbage.Amount.IsZero() {
		t.Errorf("non-numeric amount should default to zero, got %s", garbage.Amount)
	}
}

func TestMapResultCodeToUIMessage(t *testing.T) {
	tests := []struct {
		code     string
		contains string
	}{
		{"000.100.110", "approved"},
		{"000.200.000", "pending manual review"},
		{"000.200.100", "pending manual review"},
		{"200.300.404", "issuer declined"},
		{"100.396.103", "3-D Secure authentication failed"},
		{"100.390.112", "rejected"},
		{"800.400.100", "card data is invalid"},
		{"700.400.100", "expired"},
		{"100.100.101", "could not be completed"},
		{"", "could not be completed"},
		{"garbage!!", "could not be completed"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := MapResultCodeToUIMessage(tt.code)
			if got.Code != tt.code {
				t.Errorf("code = %q, want echo %q", got.Code, tt.code)
			}
			if got.Message == "" {
				t.Fatalf("message must not be empty")
			}
			if !strings.Contains(got.Message, tt.contains) {
				t.Errorf("message %q does not contain %q", got.Message, tt.contains)
			}
		})
	}
}

func TestValidateMessageRules_RejectsShadowing(t *testing.T) {
	rules := []messageRule{
		{"100.", "generic 100"},
		{"100.396.", "3ds"},
	}
	if err := validateMessageRules(rules); err == nil {
		t.Fatal("expected shadowing error, got nil")
	}
	if err := validateMessageRules(uiMessageRules); err != nil {
		t.Fatalf("shipped rules are shadowed: %v", err)
	}
}
