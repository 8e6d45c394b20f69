// services/payment-service/internal/handler/http/server.handler.go
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
)

// WebhookPipeline is implemented by *webhook.Pipeline.
type WebhookPipeline interface {
	HandleWebhook(ctx context.Context, provider string, body []byte, headers map[string]string) (*webhook.Outcome, error)
}

// PaymentAPI is the synchronous surface of *payment.PaymentService.
type PaymentAPI interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	CheckoutStatus(ctx context.Context, checkoutID string) (*payment.ChargeResult, error)
	ChargeToken(ctx context.Context, req payment.TokenChargeRequest) (*payment.ChargeResult, error)
	ChargeCard(ctx context.Context, req payment.CardChargeRequest) (*payment.ChargeResult, error)
	Tokenize(ctx context.Context, req payment.TokenizeRequest) (*payment.TokenRecord, error)
	DeleteToken(ctx context.Context, registrationID string) error
	ListTokens(ctx context.Context, userID string) ([]payment.TokenRecord, error)
	TokensExpiring(ctx context.Context, year, month int) ([]payment.TokenRecord, error)
	CreateSubscription(ctx context.Context, plan payment.RecurringPlan) (*payment.ScheduleRecord, error)
	CancelSubscription(ctx context.Context, scheduleID string) (*payment.ScheduleRecord, error)
	PauseSubscription(ctx context.Context, scheduleID string, resumeAt time.Time) (*payment.ScheduleRecord, error)
	ResumeSubscription(ctx context.Context, plan payment.RecurringPlan) (*payment.ScheduleRecord, error)
	DowngradeSubscription(ctx context.Context, req payment.DowngradeRequest) (*payment.SubscriptionInstruction, error)
}

// Upgrader is either *payment.PaymentService (synchronous, no compensation) or
// *workflow.Starter (durable, refunds on failure).
type Upgrader interface {
	UpgradeSubscription(ctx context.Context, req payment.UpgradeRequest) (*payment.UpgradeResult, error)
}

// Archiver receives every raw delivery before processing, keyed by provider. The Kafka
// producer implements it; the replay command reads the topic back.
type Archiver interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// HealthCheck is run by /readyz.
type HealthCheck func(ctx context.Context) error

type Option func(*Server)

func WithArchiver(a Archiver) Option { return func(s *Server) { s.archive = a } }
func WithUpgrader(u Upgrader) Option { return func(s *Server) { s.upgrader = u } }
func WithHealthCheck(name string, hc HealthCheck) Option {
	return func(s *Server) { s.checks[name] = hc }
}

const maxWebhookBody = 1 << 20 // 1MB

type Server struct {
	pipeline WebhookPipeline
	payments PaymentAPI
	upgrader Upgrader
	archive  Archiver
	checks   map[string]HealthCheck
	logger   *slog.Logger
	router   *gin.Engine
}

func NewServer(pipeline WebhookPipeline, payments PaymentAPI, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		pipeline: pipeline,
		payments: payments,
		checks:   make(map[string]HealthCheck),
		logger:   logger,
		router:   router,
	}
	if u, ok := payments.(Upgrader); ok {
		s.upgrader = u
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/readyz", s.handleReady)

	// Gateway notifications
	router.POST("/webhooks/:provider", s.handleWebhook)

	api := router.Group("/v1")
	{
		api.POST("/checkouts", s.handleCreateCheckout)
		api.GET("/checkouts/:id/status", s.handleCheckoutStatus)

		api.POST("/charges/token", s.handleChargeToken)
		api.POST("/charges/card", s.handleChargeCard)

		api.POST("/tokens", s.handleTokenize)
		api.DELETE("/tokens/:id", s.handleDeleteToken)
		api.GET("/tokens/expiring", s.handleTokensExpiring)
		api.GET("/users/:user_id/tokens", s.handleListTokens)

		api.POST("/subscriptions", s.handleCreateSubscription)
		api.POST("/subscriptions/resume", s.handleResumeSubscription)
		api.DELETE("/subscriptions/:id", s.handleCancelSubscription)
		api.POST("/subscriptions/:id/pause", s.handlePauseSubscription)
		api.POST("/subscriptions/:id/upgrade", s.handleUpgradeSubscription)
		api.POST("/subscriptions/:id/downgrade", s.handleDowngradeSubscription)
	}
	return s
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	failed := gin.H{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
