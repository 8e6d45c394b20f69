// services/payment-service/internal/cli/serve.go
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	handler "github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/handler/http"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/workflow"
	pkgkafka "github.com/Tanmoy095/LogiSynapse/shared/kafka"
)

func serveCmd() *cobra.Command {
	var withWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), withWorkers)
		},
	}
	cmd.Flags().BoolVar(&withWorkers, "with-workers", false, "also run the reconciliation worker and session sweeper in this process")
	return cmd
}

func runServe(ctx context.Context, withWorkers bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []handler.Option
	if a.db != nil {
		opts = append(opts, handler.WithHealthCheck("postgres", a.db.PingContext))
	}
	if a.redisIdem != nil {
		opts = append(opts, handler.WithHealthCheck("redis", a.redisIdem.Ping))
	}
	common := cfg.CommonConfig
	if brokers := common.KafkaBrokers(); len(brokers) > 0 && common.KAFKA_REPLAY_TOPIC != "" {
		archive := pkgkafka.NewKafkaProducer(brokers, common.KAFKA_REPLAY_TOPIC, a.logger)
		a.closers = append(a.closers, archive.Close)
		opts = append(opts, handler.WithArchiver(archive))
	}

	// Upgrades go through Temporal when it is configured so a failed migration refunds the
	// proration charge. Otherwise the service runs them inline.
	tc, err := a.dialTemporal()
	if err != nil {
		return err
	}
	if tc != nil {
		opts = append(opts, handler.WithUpgrader(workflow.NewStarter(tc, common.TEMPORAL_TASK_QUEUE)))
	} else {
		a.logger.Warn("TEMPORAL_HOST not set, upgrades run without compensation")
	}

	srv := handler.NewServer(a.pipeline, a.service, a.logger, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPAddr, cfg.ShutdownTimeout)
	})
	if withWorkers {
		a.startBackground(gctx, g)
	}
	return g.Wait()
}
