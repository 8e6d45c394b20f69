// services/payment-service/internal/worker/reconciliation.payment.go
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

/*
A checkout or token debit can be left "pending" locally while the gateway already settled it:
the notification never arrived, the process restarted mid-call, or the gateway answered
pending and finished later. This worker finds those stuck transactions, asks the gateway what
really happened and feeds the answer through the same reconciler the webhooks use.
*/

// EventHandler is implemented by *payment.Reconciler.
type EventHandler interface {
	Handle(ctx context.Context, event payment.NormalizedEvent) error
}

const reconcilerProvider = "reconciler"

type ReconciliationConfig struct {
	Interval    time.Duration
	OlderThan   time.Duration
	BatchSize   int // how many to process per tick
	WorkerCount int // how many goroutines to run in parallel
}

type ReconciliationWorker struct {
	transactions    payment.TransactionStore
	gateway         payment.Gateway
	handler         EventHandler
	defaultCurrency string
	cfg             ReconciliationConfig
	logger          *slog.Logger
	now             func() time.Time
}

func NewReconciliationWorker(
	transactions payment.TransactionStore,
	gateway payment.Gateway,
	handler EventHandler,
	defaultCurrency string,
	cfg ReconciliationConfig,
	logger *slog.Logger,
) *ReconciliationWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.OlderThan <= 0 {
		cfg.OlderThan = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationWorker{
		transactions:    transactions,
		gateway:         gateway,
		handler:         handler,
		defaultCurrency: defaultCurrency,
		cfg:             cfg,
		logger:          logger.With("worker", "reconciliation"),
		now:             time.Now,
	}
}

// Start runs the worker loop. blocking call.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	w.logger.Info("worker started", "interval", w.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("context cancelled, stopping")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reconciliation cycle failed", "error", err)
			}
		}
	}
}

// RunOnce processes one batch and returns how many transactions reached a terminal status.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.transactions.ListPendingTransactions(ctx, w.cfg.BatchSize, w.cfg.OlderThan)
	if err != nil {
		return 0, fmt.Errorf("list pending transactions: %w", err)
	}
	if len(pending) == 0 {
		w.logger.Debug("no pending transactions")
		return 0, nil
	}
	w.logger.Info("processing stuck transactions", "count", len(pending))

	jobs := make(chan payment.TransactionRecord, len(pending))
	var settled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for rec := range jobs {
				done, err := w.syncTransaction(ctx, rec)
				if err != nil {
					w.logger.Warn("sync failed", "worker_id", id, "gateway_txn_id", rec.GatewayTxnID, "error", err)
					continue
				}
				if done {
					settled.Add(1)
				}
			}
		}(i)
	}
	for _, rec := range pending {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	n := int(settled.Load())
	w.logger.Info("reconciliation cycle completed", "settled", n, "checked", len(pending))
	return n, nil
}

// syncTransaction asks the gateway about one pending transaction. Still-pending answers are
// left alone; terminal answers go through the reconciler.
func (w *ReconciliationWorker) syncTransaction(ctx context.Context, rec payment.TransactionRecord) (bool, error) {
	body, err := w.gateway.GetPayment(ctx, rec.GatewayTxnID)
	if err != nil {
		return false, fmt.Errorf("gateway check: %w", err)
	}
	txn := payment.NormalizeTransaction(body, firstNonEmpty(rec.Currency, w.defaultCurrency))
	if txn.GatewayTxnID == "" {
		txn.GatewayTxnID = rec.GatewayTxnID
	}
	if txn.Pending || (txn.ResultCode == "" && !txn.Approved) {
		return false, nil
	}

	kind := payment.EventPaymentFailed
	if txn.Approved {
		kind = payment.EventPaymentSuccess
	}
	w.logger.Info("gateway settled pending transaction", "gateway_txn_id", rec.GatewayTxnID, "kind", kind, "result_code", txn.ResultCode)

	err = w.handler.Handle(ctx, payment.NormalizedEvent{
		Kind:     kind,
		Provider: reconcilerProvider,
		Transaction: &payment.TransactionEvent{
			Transaction: txn,
			UserID:      rec.UserID,
			OrderID:     rec.OrderID,
		},
		Raw:        body,
		ReceivedAt: w.now(),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
