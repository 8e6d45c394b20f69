package gateway

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler, retries int) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { _ = ln.Close() })

	hc := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return NewWithHTTPClient(Config{
		BaseURL:     "http://gateway.test/",
		AccessToken: "tok",
		EntityID:    "ent-1",
		Timeout:     2 * time.Second,
		MaxRetries:  retries,
		Backoff:     time.Millisecond,
	}, hc, nil)
}

func TestDebitToken_SendsFormAndDecodes(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "POST", string(ctx.Method()))
		assert.Equal(t, "/v1/registrations/reg-1/payments", string(ctx.Path()))
		assert.Equal(t, "Bearer tok", string(ctx.Request.Header.Peek("Authorization")))
		args := ctx.PostArgs()
		assert.Equal(t, "10.50", string(args.Peek("amount")))
		assert.Equal(t, "ent-1", string(args.Peek("entityId")))
		assert.Equal(t, "MIT", string(args.Peek("standingInstruction.source")))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id":"T-1","result":{"code":"000.100.110"}}`)
	}, 0)

	body, err := c.DebitToken(context.Background(), payment.TokenDebitParams{
		RegistrationID: "reg-1", Amount: decimal.RequireFromString("10.5"), Currency: "USD", OrderID: "o1",
	})
	require.NoError(t, err)
	assert.Equal(t, "T-1", body["id"])
}

func TestDecline_ReturnedAsBody(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString(`{"result":{"code":"800.100.151","description":"invalid card"}}`)
	}, 0)

	body, err := c.DebitCard(context.Background(), payment.CardDebitParams{Amount: decimal.NewFromInt(1), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "800.100.151", payment.FirstString(body, "result.code"))
}

func TestServerError_IsProviderDown(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
		ctx.SetBodyString("upstream gone")
	}, 0)

	_, err := c.Refund(context.Background(), "T-1", decimal.NewFromInt(1), "USD")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, fasthttp.StatusBadGateway, apiErr.HTTPStatus())
	assert.ErrorIs(t, err, payment.ErrProviderDown)
	assert.True(t, payment.IsRetryAbleError(err))
}

func TestGetPayment_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "ent-1", string(ctx.QueryArgs().Peek("entityId")))
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString(`{"id":"T-9","result":{"code":"000.000.000"}}`)
	}, 3)

	body, err := c.GetPayment(context.Background(), "T-9")
	require.NoError(t, err)
	assert.Equal(t, "T-9", body["id"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetPayment_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}, 3)

	_, err := c.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelSchedule_NonApprovedResultIsError(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "DELETE", string(ctx.Method()))
		ctx.SetBodyString(`{"result":{"code":"700.400.100"}}`)
	}, 0)

	err := c.CancelSchedule(context.Background(), "sch-1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "700.400.100", apiErr.Code)
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetCheckoutStatus(ctx, "chk")
	assert.ErrorIs(t, err, context.Canceled)
}
