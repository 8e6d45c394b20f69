package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

var (
	ErrUnknownProvider   = errors.New("unknown webhook provider")
	ErrUnverifiedWebhook = errors.New("webhook signature verification failed")
	// ErrRejectedPayload wraps every processor error: the delivery itself is bad.
	ErrRejectedPayload = errors.New("webhook payload rejected")
)

// EventHandler applies a normalized event. *payment.Reconciler implements it.
type EventHandler interface {
	Handle(ctx context.Context, event payment.NormalizedEvent) error
}

// Outcome describes what happened to one delivery.
type Outcome struct {
	Provider       string
	Kind           payment.EventKind
	IdempotencyKey string
	Verified       bool
	Duplicate      bool // already processed, nothing was routed
}

type PipelineConfig struct {
	// RejectUnverified refuses deliveries whose signature did not match. Default true.
	RejectUnverified bool
	// DedupTTL is how long a processed idempotency key is remembered.
	DedupTTL time.Duration
	// ProcessingLease bounds how long an in-flight claim blocks redeliveries. A replica that
	// dies mid-route leaves the key claimed only this long.
	ProcessingLease time.Duration
}

// DefaultPipelineConfig matches the service defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{RejectUnverified: true, DedupTTL: 72 * time.Hour, ProcessingLease: 5 * time.Minute}
}

// Pipeline is the entry point for every gateway notification:
// verify -> audit -> reject unverified -> dedup -> route.
type Pipeline struct {
	processors map[string]Processor
	audit      payment.AuditStore
	idem       payment.IdempotencyStore
	handler    EventHandler
	logger     *slog.Logger
	cfg        PipelineConfig
	now        func() time.Time

	// sf keeps two concurrent redeliveries of the same key from racing on Claim.
	sf singleflight.Group
}

func NewPipeline(audit payment.AuditStore, idem payment.IdempotencyStore, handler EventHandler, cfg PipelineConfig, logger *slog.Logger, processors ...Processor) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 72 * time.Hour
	}
	if cfg.ProcessingLease <= 0 {
		cfg.ProcessingLease = 5 * time.Minute
	}
	if cfg.ProcessingLease > cfg.DedupTTL {
		cfg.ProcessingLease = cfg.DedupTTL
	}
	p := &Pipeline{
		processors: make(map[string]Processor, len(processors)),
		audit:      audit,
		idem:       idem,
		handler:    handler,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, proc := range processors {
		p.processors[strings.ToLower(proc.Provider())] = proc
	}
	return p
}

// Providers lists the registered provider names.
func (p *Pipeline) Providers() []string {
	out := make([]string, 0, len(p.processors))
	for name := range p.processors {
		out = append(out, name)
	}
	return out
}

// HandleWebhook processes one raw delivery. Any returned error means the transport must answer
// non-2xx so the gateway redelivers.
func (p *Pipeline) HandleWebhook(ctx context.Context, provider string, body []byte, headers map[string]string) (*Outcome, error) {
	proc, ok := p.processors[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	log := p.logger.With("provider", proc.Provider())

	d, err := proc.VerifyAndParse(body, headers)
	if err != nil {
		log.Warn("webhook rejected by processor", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRejectedPayload, err)
	}
	out := &Outcome{
		Provider:       proc.Provider(),
		Kind:           d.Event.Kind,
		IdempotencyKey: d.IdempotencyKey,
		Verified:       d.Verified,
	}
	log = log.With("kind", out.Kind, "idempotency_key", out.IdempotencyKey)

	// audit every delivery, including the ones we are about to refuse
	if err := p.audit.SaveWebhook(ctx, payment.WebhookRecord{
		ID:             uuid.NewString(),
		Provider:       out.Provider,
		Kind:           out.Kind,
		Payload:        d.Payload,
		Verified:       d.Verified,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      p.now(),
	}); err != nil {
		return nil, fmt.Errorf("save webhook audit: %w", err)
	}

	if !d.Verified {
		if p.cfg.RejectUnverified {
			log.Warn("unverified webhook refused")
			return out, ErrUnverifiedWebhook
		}
		log.Warn("processing unverified webhook")
	}

	if d.Event.ReceivedAt.IsZero() {
		d.Event.ReceivedAt = p.now()
	}

	if d.IdempotencyKey == "" {
		log.Debug("webhook without idempotency key, routing without dedup")
		if err := p.handler.Handle(ctx, d.Event); err != nil {
			return out, fmt.Errorf("route %s: %w", out.Kind, err)
		}
		return out, nil
	}

	key := strings.ToLower(out.Provider) + ":" + d.IdempotencyKey
	v, err, _ := p.sf.Do(key, func() (interface{}, error) {
		return p.routeOnce(ctx, log, key, d.Event)
	})
	if err != nil {
		return out, err
	}
	out.Duplicate = v.(bool)
	return out, nil
}

// routeOnce claims key for the processing lease, routes the event and then keeps the key for
// DedupTTL. It reports true when key was already claimed.
func (p *Pipeline) routeOnce(ctx context.Context, log *slog.Logger, key string, event payment.NormalizedEvent) (bool, error) {
	claimed, err := p.idem.Claim(ctx, key, p.cfg.ProcessingLease)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if !claimed {
		log.Info("duplicate webhook skipped")
		return true, nil
	}
	if err := p.handler.Handle(ctx, event); err != nil {
		// let the redelivery through
		if rerr := p.idem.Release(ctx, key); rerr != nil {
			log.Error("failed to release idempotency key", "error", rerr)
		}
		return false, fmt.Errorf("route %s: %w", event.Kind, err)
	}
	if err := p.idem.Complete(ctx, key, p.cfg.DedupTTL); err != nil {
		// the event is applied; a redelivery after the lease is absorbed by the reconciler
		log.Error("failed to complete idempotency key", "error", err)
	}
	log.Info("webhook processed")
	return false, nil
}
