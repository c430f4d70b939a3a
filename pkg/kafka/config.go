package kafka

import (
	"time"
)

// ConsumerConfig configures the Kafka consumer
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// MinBytes and MaxBytes bound the fetch batch size
	MinBytes int
	MaxBytes int

	MaxWait        time.Duration
	CommitInterval time.Duration

	// StartOffset is used when the group has no committed offset
	StartOffset int64

	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	RebalanceTimeout  time.Duration
}

func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		Topic:             "clover.values.changed",
		GroupID:           "clover-qualification",
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           3 * time.Second,
		CommitInterval:    time.Second,
		StartOffset:       FirstOffset,
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		RebalanceTimeout:  30 * time.Second,
	}
}

// ProducerConfig configures the Kafka producer
type ProducerConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration

	// RequiredAcks: 0 = none, 1 = leader, -1 = all replicas
	RequiredAcks int

	Async        bool
	MaxAttempts  int
	WriteTimeout time.Duration

	// Compression is one of none, gzip, snappy, lz4, zstd
	Compression string
}

func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		Async:        false,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
	}
}

const (
	FirstOffset int64 = -2
	LastOffset  int64 = -1
)
