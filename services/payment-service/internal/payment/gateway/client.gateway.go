// services/payment-service/internal/payment/gateway/client.gateway.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// Config for the card gateway REST API. Paths are relative to BaseURL.
type Config struct {
	BaseURL           string
	AccessToken       string
	EntityID          string
	RecurringEntityID string // entity used for merchant-initiated (token) charges; defaults to EntityID
	Timeout           time.Duration
	MaxRetries        int // retries for idempotent reads only
	Backoff           time.Duration
}

// APIError is a non-2xx answer that carried no gateway result.
type APIError struct {
	StatusCode int
	Code       string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: http %d result %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("gateway: http %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// HTTPStatus lets payment.IsRetryAbleError classify the failure.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Unwrap maps server-side failures to payment.ErrProviderDown.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= 500 {
		return payment.ErrProviderDown
	}
	return nil
}

// Client implements payment.Gateway over fasthttp with form-encoded requests.
type Client struct {
	cfg    Config
	http   *fasthttp.Client
	logger *slog.Logger
}

var _ payment.Gateway = (*Client)(nil)

func New(cfg Config, logger *slog.Logger) *Client {
	return NewWithHTTPClient(cfg, &fasthttp.Client{
		Name:                "payment-service",
		MaxConnsPerHost:     64,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxIdleConnDuration: time.Minute,
	}, logger)
}

func NewWithHTTPClient(cfg Config, hc *fasthttp.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if cfg.RecurringEntityID == "" {
		cfg.RecurringEntityID = cfg.EntityID
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc, logger: logger}
}

type form map[string]string

func amount(d decimal.Decimal) string { return d.StringFixed(2) }

func (c *Client) CreateCheckout(ctx context.Context, p payment.CheckoutParams) (map[string]any, error) {
	f := form{
		"entityId":                    c.cfg.EntityID,
		"amount":                      amount(p.Amount),
		"currency":                    p.Currency,
		"paymentType":                 "DB",
		"merchantTransactionId":       p.OrderID,
		"customer.merchantCustomerId": p.UserID,
	}
	if p.CreateRegistration {
		f["createRegistration"] = "true"
	}
	return c.do(ctx, fasthttp.MethodPost, "/v1/checkouts", f)
}

func (c *Client) GetCheckoutStatus(ctx context.Context, checkoutID string) (map[string]any, error) {
	return c.get(ctx, "/v1/checkouts/"+checkoutID+"/payment")
}

func (c *Client) GetPayment(ctx context.Context, gatewayTxnID string) (map[string]any, error) {
	return c.get(ctx, "/v1/payments/"+gatewayTxnID)
}

func (c *Client) DebitCard(ctx context.Context, p payment.CardDebitParams) (map[string]any, error) {
	f := cardForm(p.Card)
	f["entityId"] = c.cfg.EntityID
	f["amount"] = amount(p.Amount)
	f["currency"] = p.Currency
	f["paymentType"] = "DB"
	f["merchantTransactionId"] = p.OrderID
	return c.do(ctx, fasthttp.MethodPost, "/v1/payments", f)
}

func (c *Client) DebitToken(ctx context.Context, p payment.TokenDebitParams) (map[string]any, error) {
	return c.do(ctx, fasthttp.MethodPost, "/v1/registrations/"+p.RegistrationID+"/payments", form{
		"entityId":                   c.cfg.RecurringEntityID,
		"amount":                     amount(p.Amount),
		"currency":                   p.Currency,
		"paymentType":                "DB",
		"merchantTransactionId":      p.OrderID,
		"standingInstruction.mode":   "REPEATED",
		"standingInstruction.type":   "UNSCHEDULED",
		"standingInstruction.source": "MIT",
	})
}

func (c *Client) Refund(ctx context.Context, gatewayTxnID string, amt decimal.Decimal, currency string) (map[string]any, error) {
	return c.do(ctx, fasthttp.MethodPost, "/v1/payments/"+gatewayTxnID, form{
		"entityId":    c.cfg.EntityID,
		"amount":      amount(amt),
		"currency":    currency,
		"paymentType": "RF",
	})
}

func (c *Client) RegisterCard(ctx context.Context, card payment.Card) (map[string]any, error) {
	f := cardForm(card)
	f["entityId"] = c.cfg.EntityID
	return c.do(ctx, fasthttp.MethodPost, "/v1/registrations", f)
}

func (c *Client) DeleteRegistration(ctx context.Context, registrationID string) error {
	body, err := c.do(ctx, fasthttp.MethodDelete, "/v1/registrations/"+registrationID, nil)
	return resultError(body, err)
}

func (c *Client) CreateSchedule(ctx context.Context, plan payment.RecurringPlan) (map[string]any, error) {
	return c.do(ctx, fasthttp.MethodPost, "/scheduling/v1/schedules", form{
		"entityId":       c.cfg.RecurringEntityID,
		"registrationId": plan.RegistrationID,
		"amount":         amount(plan.Amount),
		"currency":       plan.Currency,
		"paymentType":    "DB",
		"job.interval":   plan.Interval,
	})
}

func (c *Client) CancelSchedule(ctx context.Context, scheduleID string) error {
	body, err := c.do(ctx, fasthttp.MethodDelete, "/scheduling/v1/schedules/"+scheduleID, nil)
	return resultError(body, err)
}

func cardForm(card payment.Card) form {
	return form{
		"paymentBrand":     card.Brand,
		"card.number":      card.Number,
		"card.holder":      card.Holder,
		"card.expiryMonth": card.ExpiryMonth,
		"card.expiryYear":  card.ExpiryYear,
		"card.cvv":         card.CVV,
	}
}

// resultError turns a non-approved result on a call without a useful body into an error.
func resultError(body map[string]any, err error) error {
	if err != nil {
		return err
	}
	if code := payment.FirstString(body, "result.code"); code != "" && !payment.IsApprovedCode(code) {
		return &APIError{StatusCode: fasthttp.StatusOK, Code: code}
	}
	return nil
}

// get retries idempotent reads on transient failures.
func (c *Client) get(ctx context.Context, path string) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.Backoff * time.Duration(attempt)):
			}
		}
		body, err := c.do(ctx, fasthttp.MethodGet, path, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !payment.IsRetryAbleError(err) {
			break
		}
		c.logger.Warn("gateway read failed, retrying", "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, path string, f form) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")

	uri := c.cfg.BaseURL + path
	if f == nil {
		// reads and deletes carry the entity in the query string
		uri += "?entityId=" + c.cfg.EntityID
	} else {
		args := fasthttp.AcquireArgs()
		for k, v := range f {
			if v != "" {
				args.Set(k, v)
			}
		}
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBody(args.QueryString())
		fasthttp.ReleaseArgs(args)
	}
	req.SetRequestURI(uri)

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	status := resp.StatusCode()
	c.logger.Debug("gateway call", "method", method, "path", path, "status", status, "duration", time.Since(start))

	var body map[string]any
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &body); err != nil && status < 300 {
			return nil, fmt.Errorf("gateway %s %s: decode response: %w", method, path, err)
		}
	}

	if status >= 200 && status < 300 {
		return body, nil
	}
	// declines come back as 4xx with a result object; let the normalizer interpret those
	if code := payment.FirstString(body, "result.code"); code != "" && status < 500 {
		return body, nil
	}
	return nil, &APIError{StatusCode: status, Code: payment.FirstString(body, "result.code"), Body: append([]byte(nil), resp.Body()...)}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
