// services/payment-service/internal/cli/replay.go
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	handler "github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/handler/http"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment/webhook"
	"github.com/Tanmoy095/LogiSynapse/shared/contracts"
	pkgkafka "github.com/Tanmoy095/LogiSynapse/shared/kafka"
)

func replayCmd() *cobra.Command {
	var fromBeginning bool
	var group string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Feed archived webhook deliveries from Kafka back through the pipeline",
		Long: `Reads the webhook replay topic and runs every archived delivery through the same
verify, audit, dedup and route pipeline as the HTTP endpoint. Deliveries that were already
applied are recognised by their idempotency key and skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			common := cfg.CommonConfig
			brokers := common.KafkaBrokers()
			if len(brokers) == 0 || common.KAFKA_REPLAY_TOPIC == "" {
				return errors.New("replay: KAFKA_BROKER and KAFKA_REPLAY_TOPIC are required")
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if group == "" {
				group = common.KAFKA_GROUP_ID + "-replay"
			}
			consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:       brokers,
				Topic:         common.KAFKA_REPLAY_TOPIC,
				GroupID:       group,
				FromBeginning: fromBeginning,
			}, a.logger)
			defer consumer.Close()

			consumer.Start(cmd.Context(), replayHandler(a.pipeline, a.logger))
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromBeginning, "from-beginning", false, "start a new consumer group at the oldest offset")
	cmd.Flags().StringVar(&group, "group", "", "consumer group (default KAFKA_GROUP_ID-replay)")
	return cmd
}

// replayHandler returns nil for deliveries that can never succeed so they are committed
// instead of blocking the partition.
func replayHandler(pipeline handler.WebhookPipeline, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, key, value []byte) error {
		var env contracts.WebhookEnvelope
		if err := json.Unmarshal(value, &env); err != nil {
			logger.Error("dropping undecodable replay message", "key", string(key), "error", err)
			return nil
		}
		out, err := pipeline.HandleWebhook(ctx, env.Provider, env.Body, env.Headers)
		switch {
		case err == nil:
			logger.Info("replayed webhook", "provider", env.Provider, "kind", out.Kind, "duplicate", out.Duplicate)
			return nil
		case errors.Is(err, webhook.ErrUnknownProvider),
			errors.Is(err, webhook.ErrUnverifiedWebhook),
			errors.Is(err, webhook.ErrRejectedPayload),
			errors.Is(err, payment.ErrMissingTransactionID):
			logger.Warn("skipping replayed webhook", "provider", env.Provider, "error", err)
			return nil
		default:
			return fmt.Errorf("replay %s webhook: %w", env.Provider, err)
		}
	}
}
