// services/payment-service/internal/handler/http/errors.handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
)

type errorResponse struct {
	Error   string `json:"error"`
	Step    string `json:"step,omitempty"`
	Charged bool   `json:"charged,omitempty"`
	TxnID   string `json:"proration_txn_id,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var upErr *payment.UpgradeError
	if errors.As(err, &upErr) && upErr.Step == payment.StepValidate {
		return http.StatusUnprocessableEntity
	}
	switch {
	case errors.Is(err, webhook.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrUnverifiedWebhook),
		errors.Is(err, stripewebhook.ErrNotSigned),
		errors.Is(err, stripewebhook.ErrNoValidSignature),
		errors.Is(err, stripewebhook.ErrInvalidHeader),
		errors.Is(err, stripewebhook.ErrTooOld):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrRejectedPayload),
		errors.Is(err, payment.ErrMissingTransactionID):
		return http.StatusBadRequest
	case payment.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrPaymentDeclined),
		errors.Is(err, payment.ErrChargePending):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrIllegalScheduleTransition):
		return http.StatusConflict
	case errors.Is(err, payment.ErrScheduleNotFound),
		errors.Is(err, payment.ErrTransactionNotFound),
		errors.Is(err, payment.ErrSessionNotFound),
		errors.Is(err, payment.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrProviderDown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var upErr *payment.UpgradeError
	if errors.As(err, &upErr) {
		resp.Step = string(upErr.Step)
		resp.Charged = upErr.Charged
		resp.TxnID = upErr.ProrationTxn
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
