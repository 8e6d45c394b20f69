// services/payment-service/internal/handler/http/webhook.handler.go
package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tanmoy095/LogiSynapse/shared/contracts"
)

type webhookResponse struct {
	Provider       string `json:"provider"`
	Kind           string `json:"kind"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Duplicate      bool   `json:"duplicate"`
}

// handleWebhook answers 200 only after the event was applied, so the gateway keeps
// redelivering until processing succeeds.
func (s *Server) handleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "webhook body too large"})
		return
	}
	headers := flattenHeaders(c.Request.Header)

	if s.archive != nil {
		env := contracts.WebhookEnvelope{Provider: provider, Body: body, Headers: headers, ReceivedAt: time.Now().UTC()}
		if err := s.archive.Publish(c.Request.Context(), provider, env); err != nil {
			s.logger.Warn("failed to archive webhook", "provider", provider, "error", err)
		}
	}

	out, err := s.pipeline.HandleWebhook(c.Request.Context(), provider, body, headers)
	if err != nil {
		s.logger.Warn("webhook not processed", "provider", provider, "error", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, webhookResponse{
		Provider:       out.Provider,
		Kind:           string(out.Kind),
		IdempotencyKey: out.IdempotencyKey,
		Duplicate:      out.Duplicate,
	})
}

// flattenHeaders keeps the first value of every header. Processors match names
// case-insensitively.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
