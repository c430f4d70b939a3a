package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is called for each message received from Kafka
type MessageHandler func(ctx context.Context, msg *ReceivedMessage) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a topic as part of a consumer group. Offsets are committed after
// the handler returns, whether or not it failed, so one bad event cannot stall the group.
type Consumer struct {
	reader  messageReader
	logger  ectologger.Logger
	config  ConsumerConfig
	handler MessageHandler
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

func NewConsumer(config ConsumerConfig, logger ectologger.Logger) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           config.Brokers,
		Topic:             config.Topic,
		GroupID:           config.GroupID,
		MinBytes:          config.MinBytes,
		MaxBytes:          config.MaxBytes,
		MaxWait:           config.MaxWait,
		CommitInterval:    config.CommitInterval,
		StartOffset:       config.StartOffset,
		SessionTimeout:    config.SessionTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		RebalanceTimeout:  config.RebalanceTimeout,
	})

	return newConsumer(reader, config, logger), nil
}

func newConsumer(reader messageReader, config ConsumerConfig, logger ectologger.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		logger: logger,
		config: config,
	}
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	c.running = true
	c.handler = handler
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Infof("Kafka consumer started for topic %s (group: %s)", c.config.Topic, c.config.GroupID)
	return nil
}

// Stop waits for the message in flight and closes the reader.
func (c *Consumer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close reader: %w", err)
	}

	c.logger.Info("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("Failed to fetch message")
			continue
		}

		status := "ok"
		if err := c.handler(ctx, toReceived(msg)); err != nil {
			status = "error"
			c.logger.WithError(err).Errorf("Handler failed for message at offset %d", msg.Offset)
		}
		metrics.RecordKafkaConsume(msg.Topic, status)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithError(err).Errorf("Failed to commit message at offset %d", msg.Offset)
		}
	}
}

func toReceived(msg kafka.Message) *ReceivedMessage {
	headers := make([]Header, len(msg.Headers))
	for i, h := range msg.Headers {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return &ReceivedMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   ExtractHeaders(headers),
	}
}
