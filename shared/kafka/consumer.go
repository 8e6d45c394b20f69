package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Reader is the subset of kafka.Reader the consumer loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a fetch/handle/commit loop over one topic.
type Consumer struct {
	reader         Reader
	logger         *slog.Logger
	handlerTimeout time.Duration
	retryDelay     time.Duration
}

// Handler processes one message. A returned error leaves the offset uncommitted.
type Handler func(ctx context.Context, key []byte, value []byte) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// FromBeginning starts a new group at the oldest offset (replay).
	FromBeginning  bool
	HandlerTimeout time.Duration
}

// NewConsumer creates the reader. groupID lets several replicas split the partitions.
func NewConsumer(cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: start,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	})
	c := NewConsumerWithReader(r, logger)
	if cfg.HandlerTimeout > 0 {
		c.handlerTimeout = cfg.HandlerTimeout
	}
	return c
}

// NewConsumerWithReader allows injecting a test reader.
func NewConsumerWithReader(r Reader, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{reader: r, logger: logger, handlerTimeout: 10 * time.Second, retryDelay: time.Second}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, handler Handler) {
	c.logger.Info("kafka consumer started")
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("kafka fetch failed", "error", err)
			c.sleep(ctx)
			continue
		}

		processCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err = handler(processCtx, m.Key, m.Value)
		cancel()

		if err != nil {
			// not committed: the group redelivers it after a rebalance or restart
			c.logger.Error("kafka message handling failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("kafka commit failed", "offset", m.Offset, "error", err)
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Close disconnects from the server.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
