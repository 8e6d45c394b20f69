// services/payment-service/internal/payment/Payment_Service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/sync/singleflight"
)

// syncProvider tags events produced by synchronous calls rather than webhooks.
const syncProvider = "api"

// PaymentService orchestrates the synchronous side of the adapter: checkout, server-to-server
// charges, card-on-file tokens and recurring schedules. Outcomes flow through the same
// Reconciler the webhook pipeline uses, so a webhook and a status poll for the same
// transaction converge on one record.
type PaymentService struct {
	gateway    Gateway
	facade     Facade
	reconciler *Reconciler
	logger     *slog.Logger

	sessionTTL      time.Duration
	defaultCurrency string
	callTimeout     time.Duration
	now             func() time.Time

	// sf collapses concurrent calls for the same checkout (double clicks, widget polling)
	// into a single gateway round trip.
	sf singleflight.Group
}

type ServiceConfig struct {
	SessionTTL      time.Duration
	DefaultCurrency string
	// CallTimeout bounds every gateway call. Zero means 30s.
	CallTimeout time.Duration
}

func NewPaymentService(gateway Gateway, facade Facade, reconciler *Reconciler, cfg ServiceConfig, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = SessionTTL(25)
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &PaymentService{
		gateway:         gateway,
		facade:          facade,
		reconciler:      reconciler,
		logger:          logger,
		sessionTTL:      cfg.SessionTTL,
		defaultCurrency: cfg.DefaultCurrency,
		callTimeout:     cfg.CallTimeout,
		now:             time.Now,
	}
}

// ChargeResult is the normalized outcome of a synchronous payment call.
type ChargeResult struct {
	Status      TransactionStatus
	UIMessage   string
	Transaction NormalizedTransaction
}

type CheckoutRequest struct {
	OrderID            string
	UserID             string
	Amount             decimal.Decimal
	Currency           string
	CreateRegistration bool
}

// CreateCheckout returns a reusable pending session for (order, user) or prepares a new
// hosted checkout. Stale sessions of the pair are purged on the way.
func (ps *PaymentService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := ps.currency(req.Currency)

	key := fmt.Sprintf("checkout_%s_%s", req.OrderID, req.UserID)
	v, err, _ := ps.sf.Do(key, func() (interface{}, error) {
		return ps.createCheckout(ctx, req, currency)
	})
	if err != nil {
		return nil, err
	}
	return v.(*CheckoutSession), nil
}

func (ps *PaymentService) createCheckout(ctx context.Context, req CheckoutRequest, currency string) (*CheckoutSession, error) {
	existing, err := ps.facade.GetSessionsBy(ctx, SessionFilter{OrderID: req.OrderID, UserID: req.UserID, Status: SessionPending})
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	now := ps.now()
	var reusable *CheckoutSession
	for i := range existing {
		s := existing[i]
		if IsSessionValid(s, ps.sessionTTL, now) && s.Amount.Equal(req.Amount) && s.Currency == currency {
			if reusable == nil {
				reusable = &s
			}
			continue
		}
		if err := ps.facade.DeleteSession(ctx, s.ID); err != nil {
			ps.logger.Warn("failed to purge stale session", "session_id", s.ID, "error", err)
		}
	}
	if reusable != nil {
		ps.logger.Debug("reusing checkout session", "session_id", reusable.ID, "checkout_id", reusable.CheckoutID)
		return reusable, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.CreateCheckout(callCtx, CheckoutParams{
		OrderID:            req.OrderID,
		UserID:             req.UserID,
		Amount:             req.Amount,
		Currency:           currency,
		CreateRegistration: req.CreateRegistration,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	checkoutID := FirstString(body, "id", "checkoutId", "ndc")
	if checkoutID == "" {
		return nil, fmt.Errorf("create checkout: gateway response has no checkout id (result %s)", FirstString(body, resultCodeFields...))
	}

	session := CheckoutSession{
		ID:         uuid.NewString(),
		OrderID:    req.OrderID,
		UserID:     req.UserID,
		CheckoutID: checkoutID,
		Amount:     req.Amount,
		Currency:   currency,
		Status:     SessionPending,
		CreatedAt:  now,
	}
	if err := ps.facade.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	ps.logger.Info("checkout prepared", "checkout_id", checkoutID, "order_id", req.OrderID)
	return &session, nil
}

// CheckoutStatus asks the gateway for the outcome of a hosted checkout and applies it.
func (ps *PaymentService) CheckoutStatus(ctx context.Context, checkoutID string) (*ChargeResult, error) {
	if checkoutID == "" {
		return nil, ErrMissingCheckoutID
	}
	v, err, _ := ps.sf.Do("checkout_status_"+checkoutID, func() (interface{}, error) {
		return ps.checkoutStatus(ctx, checkoutID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChargeResult), nil
}

func (ps *PaymentService) checkoutStatus(ctx context.Context, checkoutID string) (*ChargeResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.GetCheckoutStatus(callCtx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("checkout status %s: %w", checkoutID, err)
	}
	res := Normalize(body, ps.defaultCurrency)
	if res.GatewayTxnID == "" {
		res.GatewayTxnID = checkoutID
	}
	status := res.Status()

	if err := ps.facade.SaveVerification(ctx, VerificationRecord{
		ID:         uuid.NewString(),
		CheckoutID: checkoutID,
		ResultCode: res.ResultCode,
		Status:     status,
		Raw:        body,
		CreatedAt:  ps.now(),
	}); err != nil {
		return nil, fmt.Errorf("save verification: %w", err)
	}

	var userID, orderID string
	sessions, err := ps.facade.GetSessionsBy(ctx, SessionFilter{CheckoutID: checkoutID})
	if err != nil {
		return nil, fmt.Errorf("load session for %s: %w", checkoutID, err)
	}
	for _, s := range sessions {
		userID, orderID = s.UserID, s.OrderID
		if next := sessionStatusFor(status); next != s.Status && s.Status == SessionPending {
			s.Status = next
			if err := ps.facade.SaveSession(ctx, s); err != nil {
				return nil, fmt.Errorf("update session %s: %w", s.ID, err)
			}
		}
	}
	if userID == "" {
		userID = FirstString(body, "customer.merchantCustomerId", "customParameters.userId")
	}
	if orderID == "" {
		orderID = FirstString(body, "merchantTransactionId")
	}

	if err := ps.apply(ctx, res.NormalizedTransaction, userID, orderID, FirstString(body, "registrationId"), body); err != nil {
		return nil, err
	}
	return &ChargeResult{Status: status, UIMessage: res.UIMessage, Transaction: res.NormalizedTransaction}, nil
}

func sessionStatusFor(s TransactionStatus) SessionStatus {
	switch s {
	case TransactionSuccess:
		return SessionSuccess
	case TransactionPending:
		return SessionPending
	default:
		return SessionFailed
	}
}

type TokenChargeRequest struct {
	RegistrationID string
	UserID         string
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
}

// ChargeToken debits a stored card. A declined charge returns the result together with an
// error wrapping ErrPaymentDeclined.
func (ps *PaymentService) ChargeToken(ctx context.Context, req TokenChargeRequest) (*ChargeResult, error) {
	if req.RegistrationID == "" {
		return nil, ErrMissingRegistrationID
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := ps.currency(req.Currency)

	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.DebitToken(callCtx, TokenDebitParams{
		RegistrationID: req.RegistrationID,
		Amount:         req.Amount,
		Currency:       currency,
		OrderID:        req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("debit token %s: %w", req.RegistrationID, err)
	}
	return ps.settle(ctx, body, req.UserID, req.OrderID, "")
}

type CardChargeRequest struct {
	Card     Card
	UserID   string
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

// ChargeCard is a one-off server-to-server debit with raw card data.
func (ps *PaymentService) ChargeCard(ctx context.Context, req CardChargeRequest) (*ChargeResult, error) {
	if req.Card.Number == "" {
		return nil, ErrMissingCard
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := ps.currency(req.Currency)

	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.DebitCard(callCtx, CardDebitParams{
		Card:     req.Card,
		Amount:   req.Amount,
		Currency: currency,
		OrderID:  req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("debit card: %w", err)
	}
	return ps.settle(ctx, body, req.UserID, req.OrderID, FirstString(body, "registrationId"))
}

func (ps *PaymentService) settle(ctx context.Context, body map[string]any, userID, orderID, registrationID string) (*ChargeResult, error) {
	res := Normalize(body, ps.defaultCurrency)
	if res.GatewayTxnID == "" {
		return nil, fmt.Errorf("gateway response has no transaction id (result %s)", res.ResultCode)
	}
	if err := ps.apply(ctx, res.NormalizedTransaction, userID, orderID, registrationID, body); err != nil {
		return nil, err
	}
	out := &ChargeResult{Status: res.Status(), UIMessage: res.UIMessage, Transaction: res.NormalizedTransaction}
	if out.Status == TransactionFailed {
		return out, fmt.Errorf("%w: %s %s", ErrPaymentDeclined, res.ResultCode, res.UIMessage)
	}
	return out, nil
}

// apply routes a synchronous outcome through the reconciler.
func (ps *PaymentService) apply(ctx context.Context, txn NormalizedTransaction, userID, orderID, registrationID string, raw map[string]any) error {
	kind := EventPaymentFailed
	switch txn.Status() {
	case TransactionSuccess:
		kind = EventPaymentSuccess
	case TransactionPending:
		kind = EventPaymentPending
		registrationID = ""
	default:
		registrationID = ""
	}
	return ps.reconciler.Handle(ctx, NormalizedEvent{
		Kind:     kind,
		Provider: syncProvider,
		Transaction: &TransactionEvent{
			Transaction:    txn,
			RegistrationID: registrationID,
			UserID:         userID,
			OrderID:        orderID,
		},
		Raw:        raw,
		ReceivedAt: ps.now(),
	})
}

type TokenizeRequest struct {
	UserID string
	Card   Card
}

// Tokenize stores a card on file at the gateway and records the resulting token.
func (ps *PaymentService) Tokenize(ctx context.Context, req TokenizeRequest) (*TokenRecord, error) {
	if req.Card.Number == "" {
		return nil, ErrMissingCard
	}
	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	body, err := ps.gateway.RegisterCard(callCtx, req.Card)
	if err != nil {
		return nil, fmt.Errorf("register card: %w", err)
	}
	if code := FirstString(body, resultCodeFields...); code != "" && !IsApprovedCode(code) {
		return nil, fmt.Errorf("%w: %s %s", ErrPaymentDeclined, code, MapResultCodeToUIMessage(code).Message)
	}
	regID := FirstString(body, "id", "registrationId")
	if regID == "" {
		return nil, errors.New("register card: gateway response has no registration id")
	}
	now := ps.now()
	tok := TokenRecord{
		ID:        regID,
		Brand:     firstNonEmpty(FirstString(body, "paymentBrand", "card.brand"), req.Card.Brand),
		Last4:     last4(req.Card.Number),
		ExpiryMM:  cast.ToInt(strings.TrimLeft(req.Card.ExpiryMonth, "0")),
		ExpiryYY:  NormalizeExpiryYear(cast.ToInt(req.Card.ExpiryYear)),
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ps.facade.SaveToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("save token %s: %w", regID, err)
	}
	ps.logger.Info("card tokenized", "registration_id", regID, "user_id", req.UserID)
	return &tok, nil
}

// DeleteToken removes the registration at the gateway first, then locally.
func (ps *PaymentService) DeleteToken(ctx context.Context, registrationID string) error {
	if registrationID == "" {
		return ErrMissingRegistrationID
	}
	callCtx, cancel := context.WithTimeout(ctx, ps.callTimeout)
	defer cancel()
	if err := ps.gateway.DeleteRegistration(callCtx, registrationID); err != nil {
		return fmt.Errorf("delete registration %s: %w", registrationID, err)
	}
	if err := ps.facade.DeleteToken(ctx, registrationID); err != nil {
		return fmt.Errorf("delete token %s: %w", registrationID, err)
	}
	return nil
}

func (ps *PaymentService) ListTokens(ctx context.Context, userID string) ([]TokenRecord, error) {
	return ps.facade.GetTokensByUser(ctx, userID)
}

// TokensExpiring lists tokens whose card expires in the given month (four-digit year).
func (ps *PaymentService) TokensExpiring(ctx context.Context, year, month int) ([]TokenRecord, error) {
	return ps.facade.GetTokensExpiringIn(ctx, NormalizeExpiryYear(year), month)
}

func (ps *PaymentService) currency(c string) string {
	if c == "" {
		return ps.defaultCurrency
	}
	return strings.ToUpper(c)
}

func last4(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizeExpiryYear turns two-digit card years into four-digit ones.
func NormalizeExpiryYear(y int) int {
	if y > 0 && y < 100 {
		return 2000 + y
	}
	return y
}
