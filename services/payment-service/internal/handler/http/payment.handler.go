// services/payment-service/internal/handler/http/payment.handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// ---- request bodies ----

// money is the wire form of an amount. decimal accepts both "10.50" and 10.5.
type money = decimal.Decimal

type cardBody struct {
	Holder      string `json:"holder"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVV         string `json:"cvv"`
	Brand       string `json:"brand"`
}

func (b cardBody) card() payment.Card {
	return payment.Card{
		Holder:      b.Holder,
		Number:      b.Number,
		ExpiryMonth: b.ExpiryMonth,
		ExpiryYear:  b.ExpiryYear,
		CVV:         b.CVV,
		Brand:       b.Brand,
	}
}

type checkoutBody struct {
	OrderID            string `json:"order_id"`
	UserID             string `json:"user_id"`
	Amount             money  `json:"amount"`
	Currency           string `json:"currency"`
	CreateRegistration bool   `json:"create_registration"`
}

type tokenChargeBody struct {
	RegistrationID string `json:"registration_id"`
	UserID         string `json:"user_id"`
	OrderID        string `json:"order_id"`
	Amount         money  `json:"amount"`
	Currency       string `json:"currency"`
}

type cardChargeBody struct {
	Card     cardBody `json:"card"`
	UserID   string   `json:"user_id"`
	OrderID  string   `json:"order_id"`
	Amount   money    `json:"amount"`
	Currency string   `json:"currency"`
}

type tokenizeBody struct {
	UserID string   `json:"user_id"`
	Card   cardBody `json:"card"`
}

type planBody struct {
	RegistrationID string `json:"registration_id"`
	UserID         string `json:"user_id"`
	Amount         money  `json:"amount"`
	Currency       string `json:"currency"`
	Interval       string `json:"interval"`
}

func (b planBody) plan() payment.RecurringPlan {
	return payment.RecurringPlan{
		RegistrationID: b.RegistrationID,
		UserID:         b.UserID,
		Amount:         b.Amount,
		Currency:       b.Currency,
		Interval:       b.Interval,
	}
}

type pauseBody struct {
	ResumeAt time.Time `json:"resume_at"`
}

type upgradeBody struct {
	ProrationAmount money    `json:"proration_amount"`
	Currency        string   `json:"currency"`
	OrderID         string   `json:"order_id"`
	NewPlan         planBody `json:"new_plan"`
}

type downgradeBody struct {
	NewPlan     planBody  `json:"new_plan"`
	EffectiveAt time.Time `json:"effective_at"`
}

// ---- responses ----

type chargeResponse struct {
	Status       string          `json:"status"`
	UIMessage    string          `json:"ui_message"`
	GatewayTxnID string          `json:"gateway_txn_id,omitempty"`
	ResultCode   string          `json:"result_code,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency,omitempty"`
}

func toChargeResponse(r *payment.ChargeResult) chargeResponse {
	return chargeResponse{
		Status:       string(r.Status),
		UIMessage:    r.UIMessage,
		GatewayTxnID: r.Transaction.GatewayTxnID,
		ResultCode:   r.Transaction.ResultCode,
		Amount:       r.Transaction.Amount,
		Currency:     r.Transaction.Currency,
	}
}

type checkoutResponse struct {
	ID         string          `json:"id"`
	CheckoutID string          `json:"checkout_id"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type tokenResponse struct {
	ID       string `json:"registration_id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpiryMM int    `json:"expiry_month"`
	ExpiryYY int    `json:"expiry_year"`
	UserID   string `json:"user_id"`
}

func toTokenResponses(toks []payment.TokenRecord) []tokenResponse {
	out := make([]tokenResponse, 0, len(toks))
	for _, t := range toks {
		out = append(out, tokenResponse{ID: t.ID, Brand: t.Brand, Last4: t.Last4, ExpiryMM: t.ExpiryMM, ExpiryYY: t.ExpiryYY, UserID: t.UserID})
	}
	return out
}

type scheduleResponse struct {
	ScheduleID     string          `json:"schedule_id"`
	RegistrationID string          `json:"registration_id"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Interval       string          `json:"interval"`
}

func toScheduleResponse(s *payment.ScheduleRecord) *scheduleResponse {
	if s == nil {
		return nil
	}
	return &scheduleResponse{
		ScheduleID:     s.ScheduleID,
		RegistrationID: s.RegistrationID,
		UserID:         s.UserID,
		Status:         string(s.Status),
		Amount:         s.Amount,
		Currency:       s.Currency,
		Interval:       s.Interval,
	}
}

// ---- checkouts and charges ----

func (s *Server) handleCreateCheckout(c *gin.Context) {
	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := s.payments.CreateCheckout(c.Request.Context(), payment.CheckoutRequest{
		OrderID:            body.OrderID,
		UserID:             body.UserID,
		Amount:             body.Amount,
		Currency:           body.Currency,
		CreateRegistration: body.CreateRegistration,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{
		ID:         sess.ID,
		CheckoutID: sess.CheckoutID,
		OrderID:    sess.OrderID,
		UserID:     sess.UserID,
		Amount:     sess.Amount,
		Currency:   sess.Currency,
		Status:     string(sess.Status),
		CreatedAt:  sess.CreatedAt,
	})
}

func (s *Server) handleCheckoutStatus(c *gin.Context) {
	res, err := s.payments.CheckoutStatus(c.Request.Context(), c.Param("id"))
	s.writeCharge(c, res, err)
}

func (s *Server) handleChargeToken(c *gin.Context) {
	var body tokenChargeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.payments.ChargeToken(c.Request.Context(), payment.TokenChargeRequest{
		RegistrationID: body.RegistrationID,
		UserID:         body.UserID,
		OrderID:        body.OrderID,
		Amount:         body.Amount,
		Currency:       body.Currency,
	})
	s.writeCharge(c, res, err)
}

func (s *Server) handleChargeCard(c *gin.Context) {
	var body cardChargeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.payments.ChargeCard(c.Request.Context(), payment.CardChargeRequest{
		Card:     body.Card.card(),
		UserID:   body.UserID,
		OrderID:  body.OrderID,
		Amount:   body.Amount,
		Currency: body.Currency,
	})
	s.writeCharge(c, res, err)
}

// writeCharge renders a declined charge as 402 with the same body as a success, so the
// caller can show UIMessage either way.
func (s *Server) writeCharge(c *gin.Context, res *payment.ChargeResult, err error) {
	if err != nil && (res == nil || !errors.Is(err, payment.ErrPaymentDeclined)) {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusPaymentRequired
	}
	c.JSON(status, toChargeResponse(res))
}

// ---- tokens ----

func (s *Server) handleTokenize(c *gin.Context) {
	var body tokenizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	tok, err := s.payments.Tokenize(c.Request.Context(), payment.TokenizeRequest{UserID: body.UserID, Card: body.Card.card()})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTokenResponses([]payment.TokenRecord{*tok})[0])
}

func (s *Server) handleDeleteToken(c *gin.Context) {
	if err := s.payments.DeleteToken(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListTokens(c *gin.Context) {
	toks, err := s.payments.ListTokens(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponses(toks))
}

func (s *Server) handleTokensExpiring(c *gin.Context) {
	year, yerr := strconv.Atoi(c.Query("year"))
	month, merr := strconv.Atoi(c.Query("month"))
	if yerr != nil || merr != nil || month < 1 || month > 12 {
		badRequest(c, errors.New("year and month query parameters are required"))
		return
	}
	toks, err := s.payments.TokensExpiring(c.Request.Context(), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTokenResponses(toks))
}

// ---- subscriptions ----

func (s *Server) handleCreateSubscription(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	sched, err := s.payments.CreateSubscription(c.Request.Context(), body.plan())
	s.writeSchedule(c, http.StatusCreated, sched, err)
}

func (s *Server) handleResumeSubscription(c *gin.Context) {
	var body planBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	sched, err := s.payments.ResumeSubscription(c.Request.Context(), body.plan())
	s.writeSchedule(c, http.StatusCreated, sched, err)
}

func (s *Server) handleCancelSubscription(c *gin.Context) {
	sched, err := s.payments.CancelSubscription(c.Request.Context(), c.Param("id"))
	s.writeSchedule(c, http.StatusOK, sched, err)
}

func (s *Server) handlePauseSubscription(c *gin.Context) {
	var body pauseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	sched, err := s.payments.PauseSubscription(c.Request.Context(), c.Param("id"), body.ResumeAt)
	s.writeSchedule(c, http.StatusOK, sched, err)
}

func (s *Server) handleUpgradeSubscription(c *gin.Context) {
	if s.upgrader == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{Error: "upgrades are not enabled"})
		return
	}
	var body upgradeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.upgrader.UpgradeSubscription(c.Request.Context(), payment.UpgradeRequest{
		ScheduleID:      c.Param("id"),
		ProrationAmount: body.ProrationAmount,
		Currency:        body.Currency,
		OrderID:         body.OrderID,
		NewRecurring:    body.NewPlan.plan(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proration_txn_id": res.ProrationTxnID,
		"schedule":         toScheduleResponse(res.Schedule),
	})
}

func (s *Server) handleDowngradeSubscription(c *gin.Context) {
	var body downgradeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	inst, err := s.payments.DowngradeSubscription(c.Request.Context(), payment.DowngradeRequest{
		ScheduleID:   c.Param("id"),
		NewRecurring: body.NewPlan.plan(),
		EffectiveAt:  body.EffectiveAt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"instruction_id": inst.ID,
		"kind":           string(inst.Kind),
		"schedule_id":    inst.ScheduleID,
		"effective_at":   inst.EffectiveAt,
	})
}

func (s *Server) writeSchedule(c *gin.Context, status int, sched *payment.ScheduleRecord, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, toScheduleResponse(sched))
}
