// services/payment-service/internal/cli/worker.go
package cli

import (
	"context"

	"github.com/spf13/cobra"
	tworker "go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/activities"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/worker"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/workflow"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs: reconciliation, session sweeping and the Temporal worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runWorker(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	a.startBackground(gctx, g)

	tc, err := a.dialTemporal()
	if err != nil {
		return err
	}
	if tc != nil {
		w := tworker.New(tc, cfg.CommonConfig.TEMPORAL_TASK_QUEUE, tworker.Options{})
		workflow.Register(w, &activities.SubscriptionActivities{Service: a.service})
		if err := w.Start(); err != nil {
			return err
		}
		a.logger.Info("temporal worker started, pollers are running")
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}
	return g.Wait()
}

func (a *app) reconciliationWorker() *worker.ReconciliationWorker {
	wc := a.cfg.Worker
	return worker.NewReconciliationWorker(a.facade, a.gateway, a.reconciler, a.cfg.DefaultCurrency, worker.ReconciliationConfig{
		Interval:    wc.ReconcileInterval,
		OlderThan:   wc.ReconcileOlderThan,
		BatchSize:   wc.ReconcileBatch,
		WorkerCount: wc.ReconcileWorkers,
	}, a.logger)
}

// startBackground runs the periodic jobs until ctx is done.
func (a *app) startBackground(ctx context.Context, g *errgroup.Group) {
	recon := a.reconciliationWorker()
	sweeper := worker.NewSessionSweeper(a.facade, payment.SessionTTL(a.cfg.SessionTTLMinutes), a.cfg.Worker.SweepInterval, a.logger)
	g.Go(func() error {
		recon.Start(ctx)
		return nil
	})
	g.Go(func() error {
		sweeper.Start(ctx)
		return nil
	})
}
