// services/payment-service/internal/cli/app.go
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/config"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/entitlement"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/logging"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/gateway"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook/cardgate"
	stripewh "github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook/stripe"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/store/memory"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/store/postgres"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/store/redis"
	pkgkafka "github.com/Tanmoy095/LogiSynapse/shared/kafka"
	"github.com/Tanmoy095/LogiSynapse/shared/rabbitmq"
)

// app holds every long-lived dependency of one process. Optional infrastructure (Kafka,
// RabbitMQ, Redis, Temporal) is skipped when its config is empty.
type app struct {
	cfg    *config.PaymentConfig
	logger *slog.Logger

	db         *sql.DB // nil with the memory store
	facade     payment.Facade
	idem       payment.IdempotencyStore
	redisIdem  *redis.IdempotencyStore
	gateway    *gateway.Client
	reconciler *payment.Reconciler
	service    *payment.PaymentService
	pipeline   *webhook.Pipeline

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.PaymentConfig) (*app, error) {
	a := &app{cfg: cfg, logger: logging.New(cfg.Logging)}
	common := cfg.CommonConfig

	// 1. Storage
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Open(ctx, common.GetDBURL())
		if err != nil {
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		a.facade = postgres.NewStore(db)
	default:
		a.logger.Warn("using in-memory store, data is lost on restart")
		a.facade = memory.NewStore()
	}

	// 2. Entitlement jobs
	if common.RABBITMQ_HOST != "" {
		rmq, err := rabbitmq.NewClient(common.GetRabbitMQURL())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rmq.Close)
		if err := rmq.CreateQueue(common.RABBITMQ_QUEUE); err != nil {
			a.Close()
			return nil, err
		}
		a.facade = entitlement.NewDispatcher(a.facade, rmq, common.RABBITMQ_QUEUE, a.logger)
		a.logger.Info("entitlement jobs go to rabbitmq", "queue", common.RABBITMQ_QUEUE)
	}

	// 3. Idempotency
	if common.REDIS_ADDR != "" {
		rdb := redis.NewClient(redis.Options{
			Addr:     common.REDIS_ADDR,
			Password: common.REDIS_PASSWORD,
			DB:       common.REDIS_DB,
			Timeout:  common.REDIS_TIMEOUT,
		})
		a.closers = append(a.closers, rdb.Close)
		a.redisIdem = redis.NewIdempotencyStore(rdb, "")
		a.idem = a.redisIdem
	} else {
		a.logger.Warn("REDIS_ADDR not set, idempotency keys are per process")
		a.idem = memory.NewIdempotencyStore()
	}

	// 4. Event fan-out
	var publisher payment.EventPublisher = payment.NopPublisher{}
	if brokers := common.KafkaBrokers(); len(brokers) > 0 && common.KAFKA_TOPIC != "" {
		producer := pkgkafka.NewKafkaProducer(brokers, common.KAFKA_TOPIC, a.logger)
		a.closers = append(a.closers, producer.Close)
		publisher = producer
	} else {
		a.logger.Warn("Kafka config missing, payment events will not be published")
	}

	// 5. Domain
	a.gateway = gateway.New(gateway.Config{
		BaseURL:           cfg.Gateway.BaseURL,
		AccessToken:       cfg.Gateway.AccessToken,
		EntityID:          cfg.Gateway.EntityID,
		RecurringEntityID: cfg.Gateway.RecurringEntityID,
		Timeout:           cfg.Gateway.Timeout,
		MaxRetries:        cfg.Gateway.MaxRetries,
	}, a.logger)
	a.reconciler = payment.NewReconciler(a.facade,
		payment.WithReconcilerLogger(a.logger),
		payment.WithPublisher(publisher),
	)
	a.service = payment.NewPaymentService(a.gateway, a.facade, a.reconciler, payment.ServiceConfig{
		SessionTTL:      payment.SessionTTL(cfg.SessionTTLMinutes),
		DefaultCurrency: cfg.DefaultCurrency,
		CallTimeout:     cfg.Gateway.Timeout,
	}, a.logger)

	processors, err := a.processors()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = webhook.NewPipeline(a.facade, a.idem, a.reconciler, webhook.PipelineConfig{
		RejectUnverified: cfg.Webhook.RejectUnverified,
		DedupTTL:         cfg.Webhook.DedupTTL,
		ProcessingLease:  cfg.Webhook.ProcessingLease,
	}, a.logger, processors...)
	return a, nil
}

func (a *app) processors() ([]webhook.Processor, error) {
	verifier, err := cardgate.NewVerifier(cardgate.VerifierConfig{
		Secret:           a.cfg.Webhook.Secret,
		IVHeader:         a.cfg.Webhook.IVHeader,
		SignatureHeader:  a.cfg.Webhook.SignatureHeader,
		RequireSignature: a.cfg.Webhook.RequireSignature,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook verifier: %w", err)
	}
	procs := []webhook.Processor{cardgate.New(verifier, a.cfg.DefaultCurrency)}
	if a.cfg.Webhook.StripeSecret != "" {
		procs = append(procs, stripewh.New(a.cfg.Webhook.StripeSecret))
	}
	return procs, nil
}

// dialTemporal returns nil, nil when TEMPORAL_HOST is not configured.
func (a *app) dialTemporal() (client.Client, error) {
	common := a.cfg.CommonConfig
	if common.TEMPORAL_HOST == "" {
		return nil, nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  common.TEMPORAL_HOST,
		Namespace: common.TEMPORAL_NAMESPACE,
		Logger:    tlog.NewStructuredLogger(a.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("temporal: dial %s: %w", common.TEMPORAL_HOST, err)
	}
	a.closers = append(a.closers, func() error { c.Close(); return nil })
	a.logger.Info("connected to temporal", "host", common.TEMPORAL_HOST, "task_queue", common.TEMPORAL_TASK_QUEUE)
	return c, nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
