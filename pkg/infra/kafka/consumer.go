package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopic       = "ugc_reviews"
	DefaultGroupID     = "automated-moderation"
	DefaultWorkers     = 4
	DefaultPollTimeout = 100 * time.Millisecond
)

type Config struct {
	BootstrapServers string
	Topic            string
	GroupID          string
	Workers          int
	PollTimeout      time.Duration
}

type Handler interface {
	HandleMessage(ctx context.Context, payload []byte) error
}

type reader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	StoreOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	Close() error
}

// Consumer reads review events and fans them out to a fixed worker pool.
// A partition is always served by the same worker, so events of one
// partition are handled in order.
type Consumer struct {
	cfg     Config
	reader  reader
	handler Handler
	logger  *logrus.Logger
}

func NewConsumer(cfg Config, handler Handler, logger *logrus.Logger) (*Consumer, error) {
	cfg = withDefaults(cfg)
	if cfg.BootstrapServers == "" {
		return nil, errors.New("kafka bootstrap servers are required")
	}

	kc, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        cfg.BootstrapServers,
		"group.id":                 cfg.GroupID,
		"auto.offset.reset":        "earliest",
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := kc.SubscribeTopics([]string{cfg.Topic}, nil); err != nil {
		_ = kc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Topic, err)
	}

	logger.WithFields(logrus.Fields{
		"topic":    cfg.Topic,
		"group_id": cfg.GroupID,
		"workers":  cfg.Workers,
	}).Info("kafka consumer subscribed")

	return newConsumer(cfg, kc, handler, logger), nil
}

func newConsumer(cfg Config, r reader, handler Handler, logger *logrus.Logger) *Consumer {
	return &Consumer{
		cfg:     withDefaults(cfg),
		reader:  r,
		handler: handler,
		logger:  logger,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return cfg
}

// Run consumes until ctx is cancelled or the broker reports a fatal error.
// Queued messages are drained before it returns.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan *kafka.Message, c.cfg.Workers)
	for i := range queues {
		queue := make(chan *kafka.Message, 1)
		queues[i] = queue
		g.Go(func() error {
			for msg := range queue {
				c.process(gctx, msg)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		return c.poll(gctx, queues)
	})

	return g.Wait()
}

func (c *Consumer) poll(ctx context.Context, queues []chan *kafka.Message) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := c.reader.ReadMessage(c.cfg.PollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("kafka consumer fatal error: %w", err)
				}
			}
			c.logger.WithError(err).Warn("kafka read failed")
			continue
		}

		queue := queues[partitionSlot(msg.TopicPartition.Partition, len(queues))]
		select {
		case queue <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg *kafka.Message) {
	log := c.logger.WithFields(logrus.Fields{
		"partition": msg.TopicPartition.Partition,
		"offset":    msg.TopicPartition.Offset.String(),
	})

	if err := c.handler.HandleMessage(ctx, msg.Value); err != nil {
		log.WithError(err).Warn("review event handling failed")
	}
	if ctx.Err() != nil {
		// Left unstored so the event is redelivered after restart.
		return
	}

	tp := msg.TopicPartition
	tp.Offset++
	if _, err := c.reader.StoreOffsets([]kafka.TopicPartition{tp}); err != nil {
		log.WithError(err).Warn("failed to store kafka offset")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func partitionSlot(partition int32, slots int) int {
	if partition < 0 {
		partition = -partition
	}
	return int(partition) % slots
}
